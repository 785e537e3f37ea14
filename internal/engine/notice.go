package engine

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient user-facing message.
type Notice struct {
	Level  Level
	Title  string
	Detail string
}

// Notifier receives notices and focus requests from the engine. Implementations must
// not call back into the engine synchronously.
type Notifier interface {
	Notify(n Notice)
	// Focus asks the surface to bring the configuration of a candidate into view.
	Focus(category Category, id string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice)           {}
func (nopNotifier) Focus(Category, string) {}

const (
	titleValidateSuccess = "Validation succeeded"
	detailValidateOK     = "The model has been verified to support function calling."
	titleValidateFailed  = "Validation failed"
	titleSaveFailed      = "Failed to save provider"
	titleDefaultUpdated  = "Default model updated"
	titleDefaultFailed   = "Failed to set default model"
	titleDeleteFailed    = "Failed to reset provider"
	titleConfigureFirst  = "Configure this model first"
	titleEndpointFixed   = "Endpoint updated"
	titleSearchMissing   = "Google Search is not configured"
	detailSearchMissing  = "Search functionality may be limited without a Google API key and search engine id."
	titleRefreshFailed   = "Failed to load providers"
)
