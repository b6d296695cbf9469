package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// SubOptionHash returns a stable short hash of a sub-option identifier. The
// identifier may or may not already carry the "<methodID>_" prefix; both
// forms hash the same.
func SubOptionHash(methodID uuid.UUID, identifier string) string {
	prefix := methodID.String() + "_"
	bare := strings.TrimPrefix(identifier, prefix)
	sum := sha256.Sum256([]byte(prefix + bare))
	return hex.EncodeToString(sum[:8])
}

// ShippingOptionID is "<methodID>" for single-rate methods and
// "<methodID>_<hash>" for a sub-option.
func ShippingOptionID(methodID uuid.UUID, subOption string) string {
	if subOption == "" {
		return methodID.String()
	}
	return methodID.String() + "_" + SubOptionHash(methodID, subOption)
}

// orderShippingOptionID is the option id of the order's current selection,
// or "" when no shipping method is selected.
func orderShippingOptionID(methodID *uuid.UUID, subOption *string) string {
	if methodID == nil || *methodID == uuid.Nil {
		return ""
	}
	if subOption == nil {
		return ShippingOptionID(*methodID, "")
	}
	return ShippingOptionID(*methodID, *subOption)
}

// MatchShippingCandidate finds the candidate for the selected method and
// sub-option. Multi-option methods only match when a sub-option is selected.
func MatchShippingCandidate(candidates []ShippingQuoteCandidate, methodID uuid.UUID, subOption *string) (*ShippingQuoteCandidate, bool) {
	var want string
	if subOption != nil && *subOption != "" {
		want = SubOptionHash(methodID, *subOption)
	}
	for i := range candidates {
		c := candidates[i]
		if c.MethodID != methodID {
			continue
		}
		if !c.MultiOption {
			return &c, true
		}
		if want != "" && SubOptionHash(methodID, c.SubOptionID) == want {
			return &c, true
		}
	}
	return nil, false
}
