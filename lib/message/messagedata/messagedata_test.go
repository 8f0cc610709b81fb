package messagedata

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/errors"
)

func TestDecodeRegistered(t *testing.T) {
	key := ConsensusKey{Type: "roll_call", ID: common.Hash("rc"), Property: "state"}
	elect := NewElect(key, "closed", 1635277619)

	b, err := Marshal(elect)
	require.NoError(t, err)

	d, err := Decode(b)
	require.NoError(t, err)

	decoded, ok := d.(Elect)
	require.True(t, ok)
	require.Equal(t, elect, decoded)
	require.NoError(t, decoded.Verify())
}

func TestDecodeElectKeyField(t *testing.T) {
	key := ConsensusKey{Type: "roll_call", ID: common.Hash("rc"), Property: "state"}
	instanceID := InstanceID(1635277619, key, "closed")

	raw := `{"object":"consensus","action":"elect","instance_id":%q,%q:{"type":"roll_call","id":%q,"property":"state"},"value":"closed","created_at":1635277619}`

	d, err := Decode([]byte(fmt.Sprintf(raw, instanceID, "key", key.ID)))
	require.NoError(t, err)
	require.Equal(t, key, d.(Elect).Key)
	require.NoError(t, d.Verify())

	// `question` is not an alias of `key`
	d, err = Decode([]byte(fmt.Sprintf(raw, instanceID, "question", key.ID)))
	require.NoError(t, err)
	require.Equal(t, ConsensusKey{}, d.(Elect).Key)
	require.Error(t, d.Verify())
}

func TestMarshalSetsHeader(t *testing.T) {
	b, err := Marshal(WitnessMessage{MessageID: common.Hash("m"), Signature: common.Hash("s")})
	require.NoError(t, err)

	d, err := Decode(b)
	require.NoError(t, err)
	w := d.(WitnessMessage)
	require.Equal(t, MessageObject, w.Object)
	require.Equal(t, WitnessAction, w.Action)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode([]byte(`{"object":"coin","action":"post_transaction"}`))
	require.True(t, stderrors.Is(err, errors.UnsupportedMessageType))

	_, err = Decode([]byte(`not json`))
	require.True(t, stderrors.Is(err, errors.InvalidMessageData))

	_, err = Decode([]byte(`{"object":"consensus","action":"elect","created_at":"yesterday"}`))
	require.True(t, stderrors.Is(err, errors.InvalidMessageData))
}

func TestRegisterConflict(t *testing.T) {
	r := NewRegistry()
	r.Register(Vote{})
	require.True(t, r.Has(ConsensusObject, VoteAction))
	require.False(t, r.Has(ConsensusObject, ElectAction))

	require.Panics(t, func() { r.Register(Vote{}) })
}

func TestInstanceID(t *testing.T) {
	key := ConsensusKey{Type: "TestType", ID: common.Hash("test"), Property: "TestProperty"}

	expected := common.Hash("consensus", "1635277619", "TestType", key.ID, "TestProperty", "TestValue")
	require.Equal(t, expected, InstanceID(1635277619, key, "TestValue"))
	require.NotEqual(t, expected, InstanceID(1635277620, key, "TestValue"))
}

func TestElectVerify(t *testing.T) {
	key := ConsensusKey{Type: "meeting", ID: common.Hash("m"), Property: "state"}

	{
		e := NewElect(key, "started", 10)
		require.NoError(t, e.Verify())
	}

	{ // negative creation
		e := NewElect(key, "started", -1)
		require.True(t, stderrors.Is(e.Verify(), errors.InvalidMessageData))
	}

	{ // instance id does not match
		e := NewElect(key, "started", 10)
		e.Value = "closed"
		require.True(t, stderrors.Is(e.Verify(), errors.InvalidMessageData))
	}

	{ // missing key part
		e := NewElect(ConsensusKey{Type: "meeting"}, "started", 10)
		require.True(t, stderrors.Is(e.Verify(), errors.InvalidMessageData))
	}
}

func TestElectAcceptAndVoteVerify(t *testing.T) {
	instanceID := common.Hash("instance")
	messageID := common.Hash("message")

	require.NoError(t, NewElectAccept(instanceID, messageID, true).Verify())
	require.Error(t, NewElectAccept("@", messageID, true).Verify())
	require.Error(t, NewElectAccept(instanceID, "", true).Verify())

	require.NoError(t, NewVote("", messageID, false).Verify())
	require.NoError(t, NewVote(instanceID, messageID, true).Verify())
	require.Error(t, NewVote("@", messageID, true).Verify())
}

func TestWitnessedActions(t *testing.T) {
	meeting := CreateMeeting{
		ID:       common.Hash("M"),
		Name:     "general assembly",
		Creation: 100,
		Location: "BC410",
		Start:    200,
	}
	require.NoError(t, meeting.Verify())
	require.Equal(t, "New Meeting was created", meeting.Title())
	require.Contains(t, meeting.Description(), "Location : BC410")
	require.NotContains(t, meeting.Description(), "Finishes at")

	meeting.End = 150
	require.Error(t, meeting.Verify())

	rollCall := CreateRollCall{
		ID:            common.Hash("R"),
		Name:          "entrance",
		Creation:      100,
		ProposedStart: 100,
		ProposedEnd:   300,
		Location:      "hall",
	}
	require.NoError(t, rollCall.Verify())
	require.Equal(t, "New Roll-Call was created", rollCall.Title())

	update := UpdateLaoProperties{
		ID:           common.Hash("L"),
		Name:         "lao",
		LastModified: 10,
		Witnesses:    []string{"w0", "w1"},
	}
	require.NoError(t, update.Verify())
	require.Contains(t, update.Description(), "Witnesses : w0, w1")

	var _ Witnessed = meeting
	var _ Witnessed = rollCall
	var _ Witnessed = update
}
