package germanminer

import (
	"encoding/json"
	"fmt"
)

// Every endpoint responds with the same envelope: {"success":true,"data":...}
// on success, {"success":false,"error":...} on failure. A call only counts as
// successful when the HTTP status is 2xx AND the success flag is set.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

func dataFromResponse(endpoint string, statusCode int, status string, body []byte) (json.RawMessage, error) {
	httpOK := statusCode >= 200 && statusCode <= 299

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if !httpOK {
			// The body of an error response is not required to be JSON
			return nil, &RequestError{StatusCode: statusCode, Status: status}
		}
		return nil, &ValidationError{Endpoint: endpoint, Reason: fmt.Sprintf("malformed envelope: %v", err)}
	}

	message := ""
	if env.Error != nil {
		message = *env.Error
	}

	if !httpOK || env.Success == nil || !*env.Success {
		return nil, &RequestError{StatusCode: statusCode, Status: status, Message: message}
	}

	return env.Data, nil
}
