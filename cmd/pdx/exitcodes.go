package main

// Exit codes
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (invalid config, missing model, embedding model changed)
	ExitDataError     = 3 // Data or collaborator error (store failure, Ollama unreachable)
	ExitNotFound      = 4 // Paper not found
	ExitPartialIngest = 5 // Some papers in an add batch failed
	ExitAuditIssues   = 6 // check found inconsistencies between the stores
)
