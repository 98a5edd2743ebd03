package constants

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "text/xml"

	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "

	ResponseError = "error"
	FieldMessage  = "message"

	ContextKeyUser  = "user"
	ContextKeyToken = "token"
)

// IVR webhook form fields
const (
	IVRFieldDigits = "Digits"
	IVRFieldFrom   = "From"
)
