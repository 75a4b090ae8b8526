package types

// SuccessEnvelope wraps every successful storefront API payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable tells the storefront it may resend the same request.
	Retryable bool `json:"retryable,omitempty"`
	Details   any  `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
