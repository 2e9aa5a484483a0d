package classifier

import "github.com/rotisserie/eris"

var (
	errNoCompleter = eris.New("classifier: no completion client configured")
	errNoJSON      = eris.New("classifier: model output contains no JSON object")
	errNoSources   = eris.New("classifier: model output names no known source")
)
