package apperr

// User-facing messages are Persian; the storefront UI shows them verbatim.
var userMessages = map[Kind]string{
	Network:      "اتصال اینترنت برقرار نیست. اتصال خود را بررسی کنید",
	Timeout:      "پاسخی از سرور دریافت نشد. لطفاً دوباره تلاش کنید",
	Server:       "خطایی در سرور رخ داده است. لطفاً بعداً تلاش کنید",
	Unauthorized: "نشست شما منقضی شده است. لطفاً دوباره وارد شوید",
	Forbidden:    "دسترسی به این بخش برای شما مجاز نیست",
	NotFound:     "موردی یافت نشد",
	Validation:   "اطلاعات واردشده معتبر نیست",
	Unknown:      "خطای نامشخصی رخ داد",
}

// UserMessage returns the localized message for the error's kind. A non-empty
// server-supplied field message for validation errors takes precedence over
// the generic text.
func (e *Error) UserMessage() string {
	if e.Kind == Validation {
		for _, msg := range e.Fields {
			if msg != "" {
				return msg
			}
		}
	}
	return userMessages[e.Kind]
}

// UserMessage resolves the localized message for any error chain.
func UserMessage(err error) string {
	if e := asError(err); e != nil {
		return e.UserMessage()
	}
	return userMessages[Unknown]
}
