package errors

// Service codes (AA).
const (
	// ServiceCommon is for errors shared by every service.
	ServiceCommon = 0

	// ServiceDocQA is for the document question-answering service.
	ServiceDocQA = 21

	// ServiceInfraCache is for cache and key-value store infrastructure.
	ServiceInfraCache = 11

	// ServiceThirdPartyLLM is for inference backends.
	ServiceThirdPartyLLM = 94
)

// Category codes (BB).
const (
	CategorySuccess  = 0
	CategoryRequest  = 1
	CategoryResource = 4
	CategoryConflict = 5
	CategoryInternal = 7
	CategoryCache    = 9
	CategoryNetwork  = 10
	CategoryTimeout  = 11
	CategoryConfig   = 12
)

// MakeCode creates an error code from service, category and sequence.
// Format: AABBCCC.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits an error code into service, category and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}
