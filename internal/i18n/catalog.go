package i18n

// Message keys of the error catalog.
const (
	KeyUnauthorized        = "unauthorized"
	KeyForbidden           = "forbidden"
	KeyNotParticipant      = "not_participant"
	KeyForbiddenRecipient  = "forbidden_recipient"
	KeyNotFound            = "not_found"
	KeyInvalidInput        = "invalid_input"
	KeyParticipantsMissing = "participants_required"
	KeyGroupNameRequired   = "group_name_required"
	KeyEmptyMessage        = "empty_message"
	KeyMessageTooLong      = "message_too_long"
	KeyInternal            = "internal"
)

var catalog = map[Locale]map[string]string{
	EN: {
		KeyUnauthorized:        "Please sign in to continue.",
		KeyForbidden:           "You are not allowed to do this.",
		KeyNotParticipant:      "You are not a participant in this conversation.",
		KeyForbiddenRecipient:  "You can only message members of your teams and administrators.",
		KeyNotFound:            "The requested item was not found.",
		KeyInvalidInput:        "Some fields are missing or invalid.",
		KeyParticipantsMissing: "Select at least one participant.",
		KeyGroupNameRequired:   "A group conversation needs a name.",
		KeyEmptyMessage:        "The message cannot be empty.",
		KeyMessageTooLong:      "The message is too long.",
		KeyInternal:            "Something went wrong. Please try again.",
	},
	FR: {
		KeyUnauthorized:        "Veuillez vous connecter pour continuer.",
		KeyForbidden:           "Vous n'êtes pas autorisé à effectuer cette action.",
		KeyNotParticipant:      "Vous ne participez pas à cette conversation.",
		KeyForbiddenRecipient:  "Vous ne pouvez écrire qu'aux membres de vos équipes et aux administrateurs.",
		KeyNotFound:            "L'élément demandé est introuvable.",
		KeyInvalidInput:        "Certains champs sont manquants ou invalides.",
		KeyParticipantsMissing: "Sélectionnez au moins un participant.",
		KeyGroupNameRequired:   "Une conversation de groupe doit avoir un nom.",
		KeyEmptyMessage:        "Le message ne peut pas être vide.",
		KeyMessageTooLong:      "Le message est trop long.",
		KeyInternal:            "Une erreur est survenue. Veuillez réessayer.",
	},
	AR: {
		KeyUnauthorized:        "يرجى تسجيل الدخول للمتابعة.",
		KeyForbidden:           "غير مسموح لك بالقيام بهذا الإجراء.",
		KeyNotParticipant:      "أنت لست مشاركًا في هذه المحادثة.",
		KeyForbiddenRecipient:  "يمكنك مراسلة أعضاء فرقك والمسؤولين فقط.",
		KeyNotFound:            "العنصر المطلوب غير موجود.",
		KeyInvalidInput:        "بعض الحقول مفقودة أو غير صالحة.",
		KeyParticipantsMissing: "اختر مشاركًا واحدًا على الأقل.",
		KeyGroupNameRequired:   "يجب أن يكون لمحادثة المجموعة اسم.",
		KeyEmptyMessage:        "لا يمكن أن تكون الرسالة فارغة.",
		KeyMessageTooLong:      "الرسالة طويلة جدًا.",
		KeyInternal:            "حدث خطأ ما. يرجى المحاولة مرة أخرى.",
	},
}

// T translates key, falling back to the default locale and then to the key itself.
func T(l Locale, key string) string {
	if m, ok := catalog[l]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalog[Default][key]; ok {
		return s
	}
	return key
}
