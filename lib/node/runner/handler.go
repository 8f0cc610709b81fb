package runner

import (
	"context"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/witness"
)

func (nr *NodeRunner) handleElect(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
	return nr.consensus.OnElect(ctx, ch, env, data.(messagedata.Elect))
}

func (nr *NodeRunner) handleElectAccept(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
	return nr.consensus.OnElectAccept(ctx, ch, env, data.(messagedata.ElectAccept))
}

func (nr *NodeRunner) handleVote(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
	return nr.consensus.OnVote(ctx, ch, env, data.(messagedata.Vote))
}

func (nr *NodeRunner) handleWitness(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
	return nr.witness.OnWitness(ctx, ch, env, data.(messagedata.WitnessMessage))
}

// handleWitnessed starts witnessing an action of the organizer. An
// organization without witnesses applies it at once; a local witness signs
// it.
func (nr *NodeRunner) handleWitnessed(ctx context.Context, ch channel.Channel, env message.Envelope, data messagedata.Data) error {
	wd, ok := data.(messagedata.Witnessed)
	if !ok {
		return errors.UnsupportedMessageType.Clone().
			SetData("object", data.GetObject()).
			SetData("action", data.GetAction())
	}

	o, err := nr.registry.GetByChannel(ch)
	if err != nil {
		return err
	}
	if ch != o.Channel() {
		return errors.InvalidChannel.Clone().SetData("channel", ch).SetData("reason", "not the organization channel")
	}
	if env.Sender != o.Organizer {
		return errors.UnauthorizedSender.Clone().SetData("sender", env.Sender).SetData("reason", "not the organizer")
	}
	if u, ok := data.(messagedata.UpdateLaoProperties); ok && u.ID != o.ID {
		return errors.InvalidMessageData.Clone().SetData("id", u.ID).SetData("reason", "not the organization id")
	}

	if len(o.Witnesses) < 1 {
		return nr.apply(o.ID, env, wd, nil)
	}

	m, err := nr.witness.RegisterWitnessed(o.ID, ch, env, wd, func(m witness.Message) {
		nr.applyWitnessed(o.ID, m)
	})
	if err != nil {
		return err
	}

	me := nr.signer.PublicKey()
	if !o.IsWitness(me) || m.HasSigned(me) {
		return nil
	}

	if _, err := nr.witness.Witness(ctx, o.ID, ch, env.MessageID); err != nil {
		nr.log.Error("failed to witness", "lao", o.ID, "message", env.MessageID, "error", err)
		return err
	}

	return nil
}

// applyWitnessed applies the action of the witness message m once it
// reached quorum.
func (nr *NodeRunner) applyWitnessed(laoID string, m witness.Message) {
	if nr.actions.Has(laoID, m.MessageID) {
		return
	}

	env, err := nr.messages.Get(laoID, m.MessageID)
	if err != nil {
		nr.log.Error("witnessed message not found", "lao", laoID, "message", m.MessageID, "error", err)
		return
	}

	b, err := env.DecodeData()
	if err != nil {
		nr.log.Error("failed to decode witnessed message", "lao", laoID, "message", m.MessageID, "error", err)
		return
	}

	data, err := messagedata.Decode(b)
	if err != nil {
		nr.log.Error("failed to decode witnessed message", "lao", laoID, "message", m.MessageID, "error", err)
		return
	}

	wd, ok := data.(messagedata.Witnessed)
	if !ok {
		nr.log.Error("witnessed message is not an action", "lao", laoID, "message", m.MessageID)
		return
	}

	if err := nr.apply(laoID, env, wd, m.Signers()); err != nil {
		nr.log.Error("failed to apply action", "lao", laoID, "message", m.MessageID, "error", err)
	}
}

// apply records the action of env and applies its effect on the
// organization; an action is applied once.
func (nr *NodeRunner) apply(laoID string, env message.Envelope, wd messagedata.Witnessed, witnesses []string) error {
	if witnesses == nil {
		witnesses = []string{}
	}

	a := lao.Action{
		MessageID:   env.MessageID,
		Object:      wd.GetObject(),
		Action:      wd.GetAction(),
		Sender:      env.Sender,
		Title:       wd.Title(),
		Description: wd.Description(),
		Witnesses:   witnesses,
		Data:        env.Data,
		Applied:     nr.clock.Now().Unix(),
	}

	added, err := nr.actions.Add(laoID, a)
	if err != nil || !added {
		return err
	}

	if u, ok := wd.(messagedata.UpdateLaoProperties); ok {
		o, err := nr.registry.UpdateProperties(laoID, u.Name, u.Witnesses)
		if err != nil {
			return err
		}
		nr.log.Info("organization updated", "lao", laoID, "name", o.Name, "witnesses", o.Witnesses)
	}

	nr.log.Debug("action applied", "lao", laoID, "message", env.MessageID, "object", a.Object, "action", a.Action)

	return nil
}

// restoreProperties applies the latest restored properties update of laoID
// to the registry.
func (nr *NodeRunner) restoreProperties(laoID string, restored []lao.Action) error {
	var latest *messagedata.UpdateLaoProperties
	for _, a := range restored {
		if a.Object != messagedata.LaoObject || a.Action != messagedata.UpdatePropertiesAction {
			continue
		}

		env := message.Envelope{Data: a.Data}
		b, err := env.DecodeData()
		if err != nil {
			return err
		}
		data, err := messagedata.Decode(b)
		if err != nil {
			return err
		}

		u := data.(messagedata.UpdateLaoProperties)
		if latest == nil || u.LastModified >= latest.LastModified {
			latest = &u
		}
	}

	if latest == nil {
		return nil
	}

	_, err := nr.registry.UpdateProperties(laoID, latest.Name, latest.Witnesses)
	return err
}
