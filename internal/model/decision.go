package model

import "encoding/json"

// Decision is the webhook answer. A nil Claims renders the anonymous
// decision, otherwise the claim set is nested under Namespace.
type Decision struct {
	Namespace string
	Claims    *ClaimSet
}

func (d Decision) Anonymous() bool {
	return d.Claims == nil
}

func (d Decision) MarshalJSON() ([]byte, error) {
	if d.Claims == nil {
		return json.Marshal(AnonymousDecision{Role: AnonymousRole})
	}
	return json.Marshal(map[string]ClaimSet{d.Namespace: *d.Claims})
}
