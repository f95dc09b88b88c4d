package rpc

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/pipeline"
	"github.com/ednl/intcode/pkg/program"
	"github.com/ednl/intcode/pkg/runstore"
	"github.com/ednl/intcode/pkg/search"
)

// Version is the toolkit version reported by getVersion.
const Version = "0.4.1"

const (
	defaultAmps = 5

	chainPhaseBase    types.Word = 0
	feedbackPhaseBase types.Word = 5
)

// parseParams decodes positional params into the given targets. Targets
// beyond the params array length are left at their zero value.
func parseParams(params json.RawMessage, targets ...interface{}) *RPCError {
	if len(params) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return InvalidParamsError("params must be an array")
	}
	if len(raw) > len(targets) {
		return InvalidParamsError("too many params")
	}
	for i, r := range raw {
		if err := json.Unmarshal(r, targets[i]); err != nil {
			return InvalidParamsError("invalid param at position " + strconv.Itoa(i))
		}
	}
	return nil
}

// run executes a single machine to halt.
// Params: [programText string, config RunConfig?]
func (s *Server) run(params json.RawMessage) (interface{}, *RPCError) {
	var (
		text string
		cfg  RunConfig
	)
	if rpcErr := parseParams(params, &text, &cfg); rpcErr != nil {
		return nil, rpcErr
	}
	if text == "" {
		return nil, InvalidParamsError("program text required")
	}

	prog, err := program.ParseString(text)
	if err != nil {
		return nil, ProgramInvalidError(err)
	}

	outputs, err := pipeline.RunOne(prog.Cells(), cfg.Inputs, nil, nil)
	if err != nil {
		return nil, ExecutionFaultError(err)
	}

	if cfg.Record {
		if rpcErr := s.record(prog.ID, runstore.ModeRun, nil, lastOf(outputs), 1); rpcErr != nil {
			return nil, rpcErr
		}
	}

	return &RunResult{
		ProgramID: prog.ID.String(),
		Outputs:   outputs,
	}, nil
}

// chainSearch finds the phase assignment maximizing a serial chain.
// Params: [programText string, config SearchConfig?]
func (s *Server) chainSearch(params json.RawMessage) (interface{}, *RPCError) {
	return s.doSearch(params, runstore.ModeChain)
}

// feedbackSearch finds the phase assignment maximizing a feedback cycle.
// Params: [programText string, config SearchConfig?]
func (s *Server) feedbackSearch(params json.RawMessage) (interface{}, *RPCError) {
	return s.doSearch(params, runstore.ModeFeedback)
}

func (s *Server) doSearch(params json.RawMessage, mode runstore.Mode) (interface{}, *RPCError) {
	var (
		text string
		cfg  SearchConfig
	)
	if rpcErr := parseParams(params, &text, &cfg); rpcErr != nil {
		return nil, rpcErr
	}
	if text == "" {
		return nil, InvalidParamsError("program text required")
	}

	amps := cfg.Amps
	if amps <= 0 {
		amps = defaultAmps
	}

	base := chainPhaseBase
	if mode == runstore.ModeFeedback {
		base = feedbackPhaseBase
	}
	if cfg.PhaseBase != nil {
		base = *cfg.PhaseBase
	}

	prog, err := program.ParseString(text)
	if err != nil {
		return nil, ProgramInvalidError(err)
	}

	orch := pipeline.New(prog.Cells(), amps)
	var (
		eval   search.Evaluator
		rounds = 1
	)
	if mode == runstore.ModeFeedback {
		eval = func(phases []types.Word) (types.Word, error) {
			out, r, err := orch.Feedback(phases)
			if r > rounds {
				rounds = r
			}
			return out, err
		}
	} else {
		eval = orch.Chain
	}

	opts := &search.Options{Key: prog.ID}
	if s.cache != nil {
		opts.Cache = s.cache
	}

	res, err := search.Maximize(search.PhaseRange(base, amps), eval, opts)
	if err != nil {
		return nil, ExecutionFaultError(err)
	}

	if cfg.Record {
		if rpcErr := s.record(prog.ID, mode, res.Phases, res.Max, rounds); rpcErr != nil {
			return nil, rpcErr
		}
	}

	return &SearchResult{
		ProgramID: prog.ID.String(),
		Max:       res.Max,
		Phases:    res.Phases,
		Trials:    res.Trials,
	}, nil
}

// getBest returns the best recorded run for a program.
// Params: [programId string]
func (s *Server) getBest(params json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := parseProgramID(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if s.runs == nil {
		return nil, ErrStoreUnavailable
	}

	rec, err := s.runs.Best(id)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, InternalServerErrorf("run store: %v", err)
	}
	return runInfo(rec), nil
}

// getHistory returns recorded runs for a program, newest first.
// Params: [programId string, limit int?]
func (s *Server) getHistory(params json.RawMessage) (interface{}, *RPCError) {
	var (
		encoded string
		limit   int
	)
	if rpcErr := parseParams(params, &encoded, &limit); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ProgramIDFromBase58(encoded)
	if err != nil {
		return nil, InvalidParamsError("invalid program id")
	}
	if s.runs == nil {
		return nil, ErrStoreUnavailable
	}

	recs, err := s.runs.History(id, limit)
	if err != nil {
		return nil, InternalServerErrorf("run store: %v", err)
	}
	infos := make([]*RunInfo, len(recs))
	for i := range recs {
		infos[i] = runInfo(&recs[i])
	}
	return infos, nil
}

// getHealth returns "ok" when the server is healthy.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, NewRPCError(InternalError, "node is unhealthy")
	}
	return "ok", nil
}

// getVersion returns the toolkit version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return &VersionInfo{Version: Version}, nil
}

func (s *Server) record(id types.ProgramID, mode runstore.Mode, phases []types.Word, out types.Word, rounds int) *RPCError {
	if s.runs == nil {
		return ErrStoreUnavailable
	}
	rec := &runstore.RunRecord{
		Program: id,
		Mode:    mode,
		Phases:  phases,
		Output:  out,
		Rounds:  rounds,
	}
	if err := s.runs.RecordRun(rec); err != nil {
		return InternalServerErrorf("run store: %v", err)
	}
	return nil
}

func parseProgramID(params json.RawMessage) (types.ProgramID, *RPCError) {
	var encoded string
	if rpcErr := parseParams(params, &encoded); rpcErr != nil {
		return types.ProgramID{}, rpcErr
	}
	id, err := types.ProgramIDFromBase58(encoded)
	if err != nil {
		return types.ProgramID{}, InvalidParamsError("invalid program id")
	}
	return id, nil
}

func runInfo(rec *runstore.RunRecord) *RunInfo {
	return &RunInfo{
		ProgramID: rec.Program.String(),
		Mode:      string(rec.Mode),
		Phases:    rec.Phases,
		Output:    rec.Output,
		Rounds:    rec.Rounds,
		When:      rec.When.UTC().Format(time.RFC3339),
		Seq:       rec.Seq,
	}
}

func lastOf(outputs []types.Word) types.Word {
	if len(outputs) == 0 {
		return 0
	}
	return outputs[len(outputs)-1]
}
