// Package matching connects the client to the exposure matching engine over
// gRPC.
//
// The service uses only well-known protobuf types, so no generated code is
// involved:
//
//	service MatchingEngine {
//	  // Paths of local export files, as a list of strings.
//	  rpc ProvideDiagnosisKeys(google.protobuf.ListValue) returns (google.protobuf.Empty);
//	  // The device's own keys, as a list of structs.
//	  rpc TemporaryExposureKeyHistory(google.protobuf.Empty) returns (google.protobuf.ListValue);
//	}
package matching

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

const (
	ServiceName = "exposure.matching.v1.MatchingEngine"

	provideMethod = "/" + ServiceName + "/ProvideDiagnosisKeys"
	historyMethod = "/" + ServiceName + "/TemporaryExposureKeyHistory"
)

// ErrRejected means the engine refused the request itself, as opposed to
// being unreachable.
var ErrRejected = errors.New("matching engine rejected request")

// Engine is the matching engine contract. ProvideDiagnosisKeys accepts or
// rejects the whole file set; there is no partial success.
type Engine interface {
	ProvideDiagnosisKeys(ctx context.Context, paths []string) error
	TemporaryExposureKeyHistory(ctx context.Context) ([]keys.DiagnosisKey, error)
}
