package remote

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

var contractReflector = jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// ContractSchema is the JSON Schema of one wire payload.
type ContractSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// contractTypes lists the wire payloads in endpoint order.
var contractTypes = []struct {
	name  string
	value any
}{
	{"SignupRequest", &SignupRequest{}},
	{"SignupResponse", &SignupResponse{}},
	{"LoginRequest", &LoginRequest{}},
	{"LoginResponse", &LoginResponse{}},
	{"Conversation", &Conversation{}},
	{"CreateConversationRequest", &CreateConversationRequest{}},
	{"ConversationWithMessages", &ConversationWithMessages{}},
	{"Message", &Message{}},
	{"AddMessageRequest", &AddMessageRequest{}},
	{"AskRequest", &AskRequest{}},
	{"AskResponse", &AskResponse{}},
	{"AskDocumentResponse", &AskDocumentResponse{}},
}

// ContractSchemas reflects every request and response payload into JSON Schema.
func ContractSchemas() ([]ContractSchema, error) {
	out := make([]ContractSchema, 0, len(contractTypes))
	for _, item := range contractTypes {
		schema := contractReflector.Reflect(item.value)
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", item.name, err)
		}
		out = append(out, ContractSchema{Name: item.name, Schema: raw})
	}
	return out, nil
}
