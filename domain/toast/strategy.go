package toast

// Kind distinguishes how a capture strategy locates the toast.
type Kind string

const (
	KindSelector Kind = "selector" // wait for a CSS selector to become visible
	KindKeyword  Kind = "keyword"  // search visible text for an outcome keyword
)

// Well-known toast containers, most specific first.
const (
	SelectorToastifySuccess = ".Toastify__toast--success .Toastify__toast-body"
	SelectorToastifyBody    = ".Toastify__toast-body"
	SelectorMUIAlertMessage = ".MuiAlert-message"
	SelectorMUIAlert        = ".MuiAlert-root"
	SelectorRoleAlert       = "[role='alert']"
	SelectorRoleStatus      = "[role='status']"
)

// genericSelectors match class-name conventions shared by many UI kits.
var genericSelectors = []string{
	".toast",
	".snackbar",
	".notification",
	".ant-message",
	".ant-notification",
	".success-message",
	".alert-success",
}

// DefaultKeywords are outcome words searched as a last resort.
var DefaultKeywords = []string{
	"success",
	"created",
	"added",
	"assigned",
	"updated",
	"saved",
	"device",
	"merchant",
}

// Strategy is one entry in the ordered candidate list of a capture request.
type Strategy struct {
	Kind    Kind
	Pattern string
}

// Selector builds a CSS selector strategy.
func Selector(css string) Strategy {
	return Strategy{Kind: KindSelector, Pattern: css}
}

// Keyword builds a free-text keyword strategy.
func Keyword(word string) Strategy {
	return Strategy{Kind: KindKeyword, Pattern: word}
}

// Name identifies the strategy in results and logs.
func (s Strategy) Name() string {
	if s.Kind == KindKeyword {
		return "text=" + s.Pattern
	}
	return s.Pattern
}

// DefaultStrategies returns the standard candidate chain: framework-specific containers,
// then generic alert roles, then generic class patterns, then keyword search.
func DefaultStrategies() []Strategy {
	out := []Strategy{
		Selector(SelectorToastifySuccess),
		Selector(SelectorToastifyBody),
		Selector(SelectorMUIAlertMessage),
		Selector(SelectorMUIAlert),
		Selector(SelectorRoleAlert),
		Selector(SelectorRoleStatus),
	}
	for _, css := range genericSelectors {
		out = append(out, Selector(css))
	}
	for _, kw := range DefaultKeywords {
		out = append(out, Keyword(kw))
	}
	return out
}

// SelectorsOnly returns the default chain without keyword search.
func SelectorsOnly() []Strategy {
	var out []Strategy
	for _, s := range DefaultStrategies() {
		if s.Kind == KindSelector {
			out = append(out, s)
		}
	}
	return out
}
