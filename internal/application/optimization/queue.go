package optimization

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// QueuedOptions are the request fields that travel with a queued run.
type QueuedOptions struct {
	Objective      string                        `json:"objective,omitempty"`
	Sensitivity    []process.SensitivityRecord   `json:"sensitivity,omitempty"`
	MultiObjective *process.MultiObjectiveRecord `json:"multi_objective,omitempty"`
	Tags           []string                      `json:"tags,omitempty"`
	Artifacts      bool                          `json:"artifacts,omitempty"`
}

// NewRunRequest builds the envelope asking a worker to evaluate the case
// stored under caseKey.
func NewRunRequest(runID uuid.UUID, mode run.Mode, caseKey string, opts QueuedOptions) (*kafka.EventEnvelope, error) {
	if caseKey == "" {
		return nil, errors.InvalidParam("run request needs a case key")
	}
	if mode != "" {
		if _, err := run.ParseMode(string(mode)); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode run options")
	}
	return kafka.NewEventEnvelope(kafka.TopicRunRequested, "procsynth", kafka.RunRequestedPayload{
		RunID:   runID.String(),
		Mode:    string(mode),
		CaseKey: caseKey,
		Options: raw,
	})
}

// ParseRunRequest decodes a queued run request. The case itself is fetched
// separately; the returned request has no Case yet.
func ParseRunRequest(env *kafka.EventEnvelope) (*Request, string, error) {
	var p kafka.RunRequestedPayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, "", err
	}
	if p.CaseKey == "" {
		return nil, "", errors.InvalidParam("run request carries no case key").WithDetail(env.EventID)
	}
	req := &Request{Mode: run.Mode(p.Mode)}
	if p.RunID != "" {
		id, err := uuid.Parse(p.RunID)
		if err != nil {
			return nil, "", errors.InvalidParam("run request has a malformed run id").WithDetail(p.RunID)
		}
		req.RunID = id
	}
	if len(p.Options) > 0 {
		var opts QueuedOptions
		dec := json.NewDecoder(bytes.NewReader(p.Options))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, "", errors.Wrap(err, errors.ErrCodeSerialization, "decode run options")
		}
		req.Objective = superstructure.Objective(strings.ToUpper(opts.Objective))
		req.Sensitivity = opts.Sensitivity
		req.MultiObjective = opts.MultiObjective
		req.Tags = opts.Tags
		req.Artifacts = opts.Artifacts
	}
	return req, p.CaseKey, nil
}
