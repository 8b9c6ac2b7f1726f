package storage

import (
	"encoding/json"
	"errors"

	"tauleap/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	run.VersionedRecord = stamp()
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeTrajectories(trajectories []model.TrajectoryRecord) ([]byte, error) {
	for i := range trajectories {
		trajectories[i].VersionedRecord = stamp()
	}
	return json.Marshal(trajectories)
}

func DecodeTrajectories(data []byte) ([]model.TrajectoryRecord, error) {
	var trajectories []model.TrajectoryRecord
	if err := json.Unmarshal(data, &trajectories); err != nil {
		return nil, err
	}
	for i := range trajectories {
		if err := checkVersion(trajectories[i].VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trajectories, nil
}

func EncodeSummary(summary model.EnsembleSummary) ([]byte, error) {
	summary.VersionedRecord = stamp()
	return json.Marshal(summary)
}

func DecodeSummary(data []byte) (model.EnsembleSummary, error) {
	var summary model.EnsembleSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.EnsembleSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.EnsembleSummary{}, err
	}
	return summary, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion > CurrentSchemaVersion || v.CodecVersion > CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
