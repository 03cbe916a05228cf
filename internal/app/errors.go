package app

import "errors"

// Error taxonomy shared by the services. Handlers map these onto HTTP
// statuses; collaborator failures stay generic toward the client and get
// logged server-side with their cause.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPayloadTooLarge = errors.New("file too large")
	ErrNotFound        = errors.New("resource not found")
	ErrNotOwner        = errors.New("not authorized for this resource")

	ErrStorage    = errors.New("storage upload failed")
	ErrParse      = errors.New("text extraction failed")
	ErrEmbedding  = errors.New("embedding request failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation request failed")
)
