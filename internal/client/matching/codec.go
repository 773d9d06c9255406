package matching

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

func pathsToList(paths []string) (*structpb.ListValue, error) {
	values := make([]any, len(paths))
	for i, p := range paths {
		values[i] = p
	}
	return structpb.NewList(values)
}

func listToPaths(lv *structpb.ListValue) ([]string, error) {
	paths := make([]string, 0, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("path %d is not a string", i)
		}
		paths = append(paths, s.StringValue)
	}
	return paths, nil
}

func keysToList(ks []keys.DiagnosisKey) (*structpb.ListValue, error) {
	values := make([]any, len(ks))
	for i, k := range ks {
		values[i] = map[string]any{
			"key":                k.Base64(),
			"rollingStartNumber": float64(k.RollingStart()),
			"rollingPeriod":      float64(k.RollingPeriod()),
			"transmissionRisk":   float64(k.TransmissionRisk()),
		}
	}
	return structpb.NewList(values)
}

func listToKeys(lv *structpb.ListValue) ([]keys.DiagnosisKey, error) {
	out := make([]keys.DiagnosisKey, 0, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("key %d is not a struct", i)
		}
		k, err := keys.FromBase64(
			fields["key"].GetStringValue(),
			uint32(fields["rollingStartNumber"].GetNumberValue()),
			uint32(fields["rollingPeriod"].GetNumberValue()),
			int32(fields["transmissionRisk"].GetNumberValue()),
		)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		out = append(out, k)
	}
	return out, nil
}
