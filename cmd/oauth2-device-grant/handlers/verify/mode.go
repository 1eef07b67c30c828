package verify

import (
	"encoding/json"
	"net/http"

	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
)

// JSONModeName selects JSON decision responses, for clients that drive the
// activation page from a script instead of a browser form
const JSONModeName = "json"

type jsonDecision struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id,omitempty"`
	deviceflow.Params
}

// JSONMode renders the decision outcome as a JSON document
func JSONMode(txn *deviceflow.Transaction, sink deviceflow.Sink, params deviceflow.Params) error {
	body := jsonDecision{Status: params.Outcome.String(), Params: params}
	if txn.Req != nil {
		body.ClientID = txn.Req.ClientID
	}

	status := http.StatusOK
	if params.Outcome == deviceflow.OutcomeError {
		status = deviceflow.NewAuthorizationError(params.ErrorDescription, params.Error).Status
	}

	sink.Header().Set("Content-Type", "application/json")
	sink.Header().Set("Cache-Control", "no-store")
	sink.WriteHeader(status)
	return json.NewEncoder(sink).Encode(body)
}
