package texts

// Localized user-facing strings. The table mirrors the bot's supported
// languages; unknown languages fall back to English.
var table = map[string]map[string]string{
	"en": {
		"help":            "Send me a message and I will answer. Commands: /help, /reset, /cancel, /balance, /topup.",
		"start":           "Hey! I'm ready when you are.",
		"topup_usage":     "Usage: /topup <amount in USD>, for example /topup 5",
		"topup_link":      "Pay here to top up your balance:",
		"topup_failed":    "Could not create a payment link right now, try again later.",
		"reset_done":      "Conversation history cleared.",
		"cancel_done":     "Okay, I stopped generating.",
		"cancel_nothing":  "Nothing to cancel right now.",
		"budget_exceeded": "You have used up your budget. Top up to keep chatting.",
		"answer_failed":   "⚠️ Sorry, something went wrong while answering.",
		"payment_ok":      "Payment received, balance updated. Thank you!",
	},
	"ar": {
		"help":            "أرسل لي رسالة وسأجيب. الأوامر: ‎/help ‎/reset ‎/cancel ‎/balance ‎/topup",
		"start":           "أهلاً! أنا جاهز.",
		"topup_usage":     "الاستخدام: ‎/topup <المبلغ بالدولار>، مثلاً ‎/topup 5",
		"topup_link":      "ادفع هنا لإعادة شحن رصيدك:",
		"topup_failed":    "تعذر إنشاء رابط الدفع الآن، حاول لاحقاً.",
		"reset_done":      "تم مسح سجل المحادثة.",
		"cancel_done":     "حسناً، توقفت عن التوليد.",
		"cancel_nothing":  "لا يوجد شيء لإلغائه الآن.",
		"budget_exceeded": "لقد استنفدت رصيدك. أعد الشحن لمواصلة الدردشة.",
		"answer_failed":   "⚠️ عذراً، حدث خطأ أثناء الإجابة.",
		"payment_ok":      "تم استلام الدفعة وتحديث الرصيد. شكراً!",
	},
}

// Localized returns the text for key in the given language, falling back
// to English and then to the key itself.
func Localized(lang, key string) string {
	if m, ok := table[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := table["en"][key]; ok {
		return s
	}
	return key
}
