package consts

// CtxKey is the type used for context value keys across skillhunt.
type CtxKey string

const (
	CtxKeyLogID CtxKey = "log_id"
	CtxKeyTask  CtxKey = "task"
)
