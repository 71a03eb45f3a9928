// Package convert maps domain results to and from protobuf well-known types.
package convert

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/cruise-docsync/internal/model"
)

// Field names of the SyncTrip response struct.
const (
	fieldTripID        = "trip_id"
	fieldSpreadsheetID = "spreadsheet_id"
	fieldURL           = "url"
	fieldFolderID      = "folder_id"
	fieldRows          = "rows"
	fieldCreated       = "created"
	fieldHealed        = "healed"
)

// ToProtoTripID wraps a trip id for the SyncTrip request.
func ToProtoTripID(id int64) *wrapperspb.Int64Value { return wrapperspb.Int64(id) }

// FromProtoTripID validates and unwraps a trip id.
func FromProtoTripID(v *wrapperspb.Int64Value) (int64, error) {
	if v == nil || v.GetValue() <= 0 {
		return 0, fmt.Errorf("trip id must be positive")
	}
	return v.GetValue(), nil
}

// ToProtoSyncResult encodes a SyncResult as a Struct.
func ToProtoSyncResult(r model.SyncResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		// trip ids are int64; string keeps them exact beyond 2^53
		fieldTripID:        structpb.NewStringValue(strconv.FormatInt(r.TripID, 10)),
		fieldSpreadsheetID: structpb.NewStringValue(r.SpreadsheetID),
		fieldURL:           structpb.NewStringValue(r.URL),
		fieldFolderID:      structpb.NewStringValue(r.FolderID),
		fieldRows:          structpb.NewNumberValue(float64(r.Rows)),
		fieldCreated:       structpb.NewBoolValue(r.Created),
		fieldHealed:        structpb.NewBoolValue(r.Healed),
	}}
}

// FromProtoSyncResult decodes a Struct produced by ToProtoSyncResult.
func FromProtoSyncResult(s *structpb.Struct) (model.SyncResult, error) {
	if s == nil {
		return model.SyncResult{}, fmt.Errorf("nil SyncResult")
	}
	f := s.GetFields()
	var r model.SyncResult
	if v := f[fieldTripID].GetStringValue(); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.SyncResult{}, fmt.Errorf("bad trip_id %q: %w", v, err)
		}
		r.TripID = id
	}
	r.SpreadsheetID = f[fieldSpreadsheetID].GetStringValue()
	r.URL = f[fieldURL].GetStringValue()
	r.FolderID = f[fieldFolderID].GetStringValue()
	r.Rows = int(f[fieldRows].GetNumberValue())
	r.Created = f[fieldCreated].GetBoolValue()
	r.Healed = f[fieldHealed].GetBoolValue()
	if r.SpreadsheetID == "" {
		return model.SyncResult{}, fmt.Errorf("missing %s", fieldSpreadsheetID)
	}
	return r, nil
}
