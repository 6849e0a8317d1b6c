package webhook

import (
	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

// Summarize turns a work result into the item the webhook client delivers.
// Failed results carry only the error text.
func Summarize(r models.WorkResult) models.WebhookItem {
	item := models.WebhookItem{
		RequestID: r.RequestID,
		BatchID:   r.BatchID,
		Iteration: r.Iteration,
		Success:   r.Success,
	}
	if r.Err != nil {
		item.Error = r.Err.Error()
	}
	if r.Result == nil {
		return item
	}

	res := r.Result
	item.Iterations = res.Iterations
	item.Buses = append([]goloadflow.BusResult(nil), res.Buses...)
	item.Branches = append([]goloadflow.BranchFlow(nil), res.Branches...)
	item.TotalLossP, item.TotalLossQ = res.TotalLoss()
	weakest := res.Weakest()
	item.WeakestBus = weakest.ID
	item.WeakestVoltage = weakest.Magnitude
	item.SlackRealPower = res.SlackRealPower
	item.SlackReactivePower = res.SlackReactivePower
	item.PVReactivePower = res.PVReactivePower
	return item
}
