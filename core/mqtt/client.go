package mqtt

import (
	"time"

	"github.com/immansha/renewcast/core/model"
)

// Command is a backup dispatch instruction for the SCADA gateway of a plant.
type Command struct {
	CommandID  string  `json:"command_id"`
	DecisionID string  `json:"decision_id"`
	PlantID    string  `json:"plant_id"`
	Asset      string  `json:"asset"`
	AssetType  string  `json:"asset_type,omitempty"`
	MW         float64 `json:"mw"`
	ReserveMW  float64 `json:"spinning_reserve_mw"`
	MeritClass int     `json:"cerc_merit_class"`
	Note       string  `json:"action_note,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// CommandFromDispatch builds the command for an approved decision. The
// command id is assigned by the client when sending.
func CommandFromDispatch(g model.GatedDispatch) Command {
	cmd := Command{
		DecisionID: g.ID,
		PlantID:    g.EntityID,
		Asset:      g.AssetName(),
		MW:         g.AdjustedMW,
		ReserveMW:  g.ReserveMW,
		MeritClass: g.MeritClass,
		Note:       g.ActionNote,
	}
	if g.AssetType != nil {
		cmd.AssetType = string(*g.AssetType)
	}
	return cmd
}

// Client sends dispatch commands and waits for the gateway acknowledgment.
type Client interface {
	// SendCommand publishes the command and returns the identifier used to
	// track its acknowledgment.
	SendCommand(cmd Command) (commandID string, err error)

	// WaitForAck waits for an acknowledgment of commandID or until the
	// timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
