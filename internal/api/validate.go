package api

import (
	"fmt"
	"strconv"

	"chainsim/internal/model"
)

const maxStepFrames = 3600

type speedRequest struct {
	Speed *float64 `json:"speed"`
}

type scenarioRequest struct {
	Scenario string `json:"scenario"`
}

// controlMessage is the payload of a WebSocket "control" message.
type controlMessage struct {
	Action   string   `json:"action"`
	Speed    *float64 `json:"speed,omitempty"`
	Scenario string   `json:"scenario,omitempty"`
	RouteID  string   `json:"routeId,omitempty"`
}

func validateSpeedRequest(req *speedRequest) error {
	if req.Speed == nil {
		return fmt.Errorf("speed is required")
	}
	return nil
}

func validateScenarioRequest(req *scenarioRequest) error {
	if req.Scenario == "" {
		return fmt.Errorf("scenario is required (one of %v)", model.Scenarios)
	}
	return nil
}

// parseFrames reads the step count; empty means one frame.
func parseFrames(v string) (int, error) {
	if v == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("frames must be an integer")
	}
	if n < 1 || n > maxStepFrames {
		return 0, fmt.Errorf("frames must be in [1, %d]", maxStepFrames)
	}
	return n, nil
}

func validateControl(m *controlMessage) error {
	switch m.Action {
	case "toggle", "play", "pause", "reset":
		return nil
	case "speed":
		return validateSpeedRequest(&speedRequest{Speed: m.Speed})
	case "scenario":
		return validateScenarioRequest(&scenarioRequest{Scenario: m.Scenario})
	case "dispatch":
		if m.RouteID == "" {
			return fmt.Errorf("routeId is required")
		}
		return nil
	case "":
		return fmt.Errorf("action is required")
	}
	return fmt.Errorf("unknown action %q", m.Action)
}
