package models

import (
	"time"

	"github.com/kacperjurak/goloadflow"
)

// BusSpec describes one bus of an incoming case
type BusSpec struct {
	ID   string             `json:"id"`
	Type goloadflow.BusType `json:"type"`
}

// BranchSpec describes one series branch, impedance in p.u.
type BranchSpec struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	R    float64 `json:"r"`
	X    float64 `json:"x"`
}

// SolveRequest represents an incoming load-flow case
type SolveRequest struct {
	ID             string                    `json:"id,omitempty"`
	Buses          []BusSpec                 `json:"buses"`
	Branches       []BranchSpec              `json:"branches"`
	BaseMVA        float64                   `json:"base_mva"`
	OperatingPoint goloadflow.OperatingPoint `json:"operating_point"`
}

// Network converts the request to the solver's network type
func (r SolveRequest) Network() goloadflow.Network {
	n := goloadflow.Network{
		Buses:    make([]goloadflow.Bus, len(r.Buses)),
		Branches: make([]goloadflow.Branch, len(r.Branches)),
		BaseMVA:  r.BaseMVA,
	}
	for i, b := range r.Buses {
		n.Buses[i] = goloadflow.Bus{ID: b.ID, Type: b.Type}
	}
	for i, b := range r.Branches {
		n.Branches[i] = goloadflow.Branch{From: b.From, To: b.To, R: b.R, X: b.X}
	}
	return n
}

// Point returns the scheduled operating point
func (r SolveRequest) Point() goloadflow.OperatingPoint {
	return r.OperatingPoint
}

// DefaultRequest returns the three-bus reference case
func DefaultRequest() SolveRequest {
	return SolveRequest{
		Buses: []BusSpec{
			{ID: "1", Type: goloadflow.Slack},
			{ID: "2", Type: goloadflow.PV},
			{ID: "3", Type: goloadflow.PQ},
		},
		Branches: []BranchSpec{
			{From: "1", To: "2", R: 0.02, X: 0.06},
			{From: "1", To: "3", R: 0.08, X: 0.24},
			{From: "2", To: "3", R: 0.06, X: 0.18},
		},
		BaseMVA: 100,
		OperatingPoint: goloadflow.OperatingPoint{
			SlackVoltage:    1.05,
			PVVoltage:       1.0,
			PVRealPower:     50,
			PQRealPower:     -80,
			PQReactivePower: -30,
		},
	}
}

// ErrorPayload is the JSON shape of a failed solve
type ErrorPayload struct {
	Kind       string  `json:"kind"`
	Message    string  `json:"message"`
	Iterations int     `json:"iterations,omitempty"`
	Mismatch   float64 `json:"max_mismatch,omitempty"`
	Step       int     `json:"step,omitempty"`
}

// SolveResponse is returned by the synchronous endpoint
type SolveResponse struct {
	RequestID string             `json:"request_id"`
	Success   bool               `json:"success"`
	Cached    bool               `json:"cached,omitempty"`
	Result    *goloadflow.Result `json:"result,omitempty"`
	Error     *ErrorPayload      `json:"error,omitempty"`
	ElapsedMS float64            `json:"elapsed_ms"`
}

// BatchItem represents a single case with its position in the batch
type BatchItem struct {
	Case      SolveRequest `json:"case"`
	Iteration int          `json:"iteration"`
}

// BatchRequest represents a batch of load-flow cases
type BatchRequest struct {
	BatchID   string      `json:"batch_id"`
	Timestamp time.Time   `json:"timestamp"`
	Cases     []BatchItem `json:"cases"`
}

// SweepRequest asks for the base case solved at several PQ loads
type SweepRequest struct {
	Case    SolveRequest `json:"case"`
	LoadsMW []float64    `json:"loads_mw"`
	Workers int          `json:"workers,omitempty"`
}

// SweepPointPayload is one sweep point on the wire
type SweepPointPayload struct {
	LoadMW    float64       `json:"load_mw"`
	Converged bool          `json:"converged"`
	Voltage   float64       `json:"pq_voltage,omitempty"`
	SlackP    float64       `json:"slack_real_power,omitempty"`
	LossP     float64       `json:"loss_p_mw,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// SweepResponse is returned by the sweep endpoint
type SweepResponse struct {
	RequestID     string              `json:"request_id"`
	Points        []SweepPointPayload `json:"points"`
	LastConverged *float64            `json:"last_converged_mw,omitempty"`
}

// WorkItem represents a single load-flow task
type WorkItem struct {
	ID        int
	RequestID string
	BatchID   string
	Iteration int
	Case      SolveRequest
	Settings  goloadflow.Settings
	StartTime time.Time
	// Reply receives the result when set, otherwise it goes to the pool's
	// shared results channel.
	Reply chan<- WorkResult
}

// WorkResult contains the outcome of one task
type WorkResult struct {
	ID             int
	RequestID      string
	BatchID        string
	Iteration      int
	Result         *goloadflow.Result
	Err            error
	ProcessingTime time.Duration
	Success        bool
}

// WebhookItem represents a webhook task
type WebhookItem struct {
	RequestID       string
	BatchID         string
	Iteration       int
	Success         bool
	Error           string
	Iterations      int
	Buses           []goloadflow.BusResult
	Branches        []goloadflow.BranchFlow
	TotalLossP      float64
	TotalLossQ      float64
	WeakestBus      string
	WeakestVoltage  float64
	SlackRealPower  float64
	SlackReactivePower float64
	PVReactivePower float64
}

// WebhookResponse represents the webhook payload structure
type WebhookResponse struct {
	ID                 string                  `json:"id"`
	BatchID            string                  `json:"batch_id,omitempty"`
	Iteration          int                     `json:"iteration"`
	Time               string                  `json:"time"`
	Success            bool                    `json:"success"`
	Error              string                  `json:"error,omitempty"`
	Iterations         int                     `json:"iterations"`
	Buses              []goloadflow.BusResult  `json:"buses"`
	Branches           []goloadflow.BranchFlow `json:"branches"`
	TotalLossP         float64                 `json:"total_loss_p_mw"`
	TotalLossQ         float64                 `json:"total_loss_q_mvar"`
	WeakestBus         string                  `json:"weakest_bus"`
	WeakestVoltage     float64                 `json:"weakest_voltage"`
	SlackRealPower     float64                 `json:"slack_real_power"`
	SlackReactivePower float64                 `json:"slack_reactive_power"`
	PVReactivePower    float64                 `json:"pv_reactive_power"`
}

// CaseTiming tracks performance metrics for individual case processing
type CaseTiming struct {
	Iteration      int           `json:"iteration"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	Iterations     int           `json:"iterations"`
	Mismatch       float64       `json:"max_mismatch"`
	Success        bool          `json:"success"`
	Method         string        `json:"method"`
}
