package loomifysdk

import "github.com/BrianElionDev/Loomify/internal/domain"

// The API models are shared with the server so gateway consumers and the
// store agree on field names byte for byte.
type (
	Recording        = domain.Recording
	AnalysisResult   = domain.AnalysisResult
	Developer        = domain.Developer
	Task             = domain.Task
	Summary          = domain.Summary
	CompletionUpdate = domain.CompletionUpdate
	TextUpdate       = domain.TextUpdate
)
