package xkb

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestRequestEncoding(t *testing.T) {
	const op = 135

	assert.Equal(t, []byte{op, 0, 2, 0, 1, 0, 0, 0}, useExtensionRequest(op, 1, 0))

	assert.Equal(t, []byte{
		op, 1, 4, 0,
		0x00, 0x01, // core keyboard
		0x04, 0x00, // affectWhich
		0x00, 0x00, // clear
		0x04, 0x00, // selectAll
		0x00, 0x00,
		0x00, 0x00,
	}, selectEventsRequest(op, IdUseCoreKbd, 0, EventTypeStateNotify, 0, 0))

	assert.Equal(t, []byte{op, 4, 2, 0, 0x00, 0x01, 0, 0}, getStateRequest(op, IdUseCoreKbd))

	assert.Equal(t, []byte{
		op, 17, 3, 0,
		0x00, 0x01, 0, 0,
		0x00, 0x10, 0x00, 0x00,
	}, getNamesRequest(op, IdUseCoreKbd, NameDetailGroupNames))
}

func TestUseExtensionReply(t *testing.T) {
	buf := make([]byte, 32)
	buf[0] = 1
	buf[1] = 1
	xgb.Put16(buf[2:], 7)
	xgb.Put16(buf[8:], 1)
	xgb.Put16(buf[10:], 0)

	r := useExtensionReply(buf)
	assert.True(t, r.Supported)
	assert.Equal(t, uint16(7), r.Sequence)
	assert.Equal(t, uint16(1), r.ServerMajor)
	assert.Equal(t, uint16(0), r.ServerMinor)

	buf[1] = 0
	assert.False(t, useExtensionReply(buf).Supported)
}

func TestGetStateReply(t *testing.T) {
	buf := make([]byte, 32)
	buf[0] = 1
	buf[1] = 3 // device
	buf[8] = 0x01
	buf[12] = 2
	buf[13] = 1
	xgb.Put16(buf[14:], 1)
	xgb.Put16(buf[16:], 0xffff)
	xgb.Put16(buf[24:], 0x100)

	r := getStateReply(buf)
	assert.Equal(t, byte(3), r.DeviceID)
	assert.Equal(t, byte(0x01), r.Mods)
	assert.Equal(t, byte(2), r.Group)
	assert.Equal(t, byte(1), r.LockedGroup)
	assert.Equal(t, int16(1), r.BaseGroup)
	assert.Equal(t, int16(-1), r.LatchedGroup)
	assert.Equal(t, uint16(0x100), r.PtrBtnState)
}

func namesHeader(which uint32, nTypes, groupNames byte, virtualMods uint16, indicators uint32) []byte {
	buf := make([]byte, 32)
	buf[0] = 1
	xgb.Put32(buf[8:], which)
	buf[14] = nTypes
	buf[15] = groupNames
	xgb.Put16(buf[16:], virtualMods)
	xgb.Put32(buf[20:], indicators)
	return buf
}

func putAtoms(buf []byte, atoms ...uint32) []byte {
	for _, a := range atoms {
		b := make([]byte, 4)
		xgb.Put32(b, a)
		buf = append(buf, b...)
	}
	return buf
}

func TestGetNamesReplyGroupsOnly(t *testing.T) {
	buf := namesHeader(NameDetailGroupNames, 0, 0x07, 0, 0)
	buf = putAtoms(buf, 301, 302, 303)

	r, err := getNamesReply(buf)
	require.NoError(t, err)
	assert.Equal(t, []xproto.Atom{301, 302, 303}, r.Groups)
}

func TestGetNamesReplySparseGroupMask(t *testing.T) {
	// groups 1 and 3 named
	buf := namesHeader(NameDetailGroupNames, 0, 0x05, 0, 0)
	buf = putAtoms(buf, 11, 33)

	r, err := getNamesReply(buf)
	require.NoError(t, err)
	assert.Equal(t, []xproto.Atom{11, 33}, r.Groups)
}

func TestGetNamesReplySkipsPrecedingNames(t *testing.T) {
	which := uint32(NameDetailKeycodes | NameDetailSymbols | NameDetailKeyTypeNames |
		NameDetailKTLevelNames | NameDetailIndicatorNames | NameDetailVirtualModNames |
		NameDetailGroupNames)
	buf := namesHeader(which, 2, 0x03, 0x0005, 0x1)

	buf = putAtoms(buf, 1, 2)         // keycodes, symbols
	buf = putAtoms(buf, 3, 4)         // two type names
	buf = append(buf, 1, 2, 0, 0)     // levels per type, padded
	buf = putAtoms(buf, 5, 6, 7)      // three level names
	buf = putAtoms(buf, 8)            // one indicator
	buf = putAtoms(buf, 9, 10)        // two virtual mods
	buf = putAtoms(buf, 500, 501)     // groups
	buf = putAtoms(buf, 0xdead, 0xff) // key names that follow

	r, err := getNamesReply(buf)
	require.NoError(t, err)
	assert.Equal(t, []xproto.Atom{500, 501}, r.Groups)
}

func TestGetNamesReplyWithoutGroups(t *testing.T) {
	r, err := getNamesReply(namesHeader(NameDetailSymbols, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, r.Groups)
}

func TestGetNamesReplyTruncated(t *testing.T) {
	buf := namesHeader(NameDetailGroupNames, 0, 0x0f, 0, 0)
	buf = putAtoms(buf, 1, 2)

	_, err := getNamesReply(buf)
	require.Error(t, err)

	_, err = getNamesReply(make([]byte, 12))
	require.Error(t, err)
}

func stateNotifyBytes() []byte {
	buf := make([]byte, 32)
	buf[0] = 85
	buf[1] = StateNotify
	xgb.Put16(buf[2:], 42)
	xgb.Put32(buf[4:], 123456)
	buf[8] = 3
	buf[13] = 1 // group
	xgb.Put16(buf[14:], 0)
	xgb.Put16(buf[16:], 0)
	buf[18] = 1 // locked group
	xgb.Put16(buf[26:], StatePartGroupState|StatePartGroupLock)
	buf[28] = 50
	buf[29] = 2
	return buf
}

func TestStateNotifyEventNew(t *testing.T) {
	ev, ok := EventNew(stateNotifyBytes()).(StateNotifyEvent)
	require.True(t, ok)

	assert.Equal(t, uint16(42), ev.Sequence)
	assert.Equal(t, xproto.Timestamp(123456), ev.Time)
	assert.Equal(t, byte(3), ev.DeviceID)
	assert.Equal(t, byte(1), ev.Group)
	assert.Equal(t, byte(1), ev.LockedGroup)
	assert.Equal(t, xproto.Keycode(50), ev.Keycode)
	assert.Equal(t, byte(2), ev.EventType)
	assert.True(t, ev.GroupChanged())
	assert.Equal(t, uint16(42), ev.SequenceId())

	// the event number is connection specific and not reproduced
	want := stateNotifyBytes()
	want[0] = 0
	assert.Equal(t, want, ev.Bytes())
}

func TestStateNotifyModifierOnly(t *testing.T) {
	buf := stateNotifyBytes()
	xgb.Put16(buf[26:], StatePartModifierState|StatePartModifierLock)

	ev := StateNotifyEventNew(buf).(StateNotifyEvent)
	assert.False(t, ev.GroupChanged())
}

func TestEventNewOtherSubtypes(t *testing.T) {
	buf := make([]byte, 32)
	buf[0] = 85
	buf[1] = NamesNotify
	xgb.Put16(buf[2:], 9)
	buf[8] = 3

	ev, ok := EventNew(buf).(NotifyEvent)
	require.True(t, ok)
	assert.Equal(t, byte(NamesNotify), ev.XkbType)
	assert.Equal(t, uint16(9), ev.SequenceId())
	assert.Equal(t, byte(3), ev.DeviceID)
	assert.Equal(t, buf, ev.Bytes())
}

func TestKeyboardError(t *testing.T) {
	buf := make([]byte, 32)
	buf[1] = 140
	xgb.Put16(buf[2:], 11)
	xgb.Put32(buf[4:], 0x100)
	xgb.Put16(buf[8:], opGetState)
	buf[10] = 135

	err := KeyboardErrorNew(buf)
	assert.Equal(t, uint16(11), err.SequenceId())
	assert.Equal(t, uint32(0x100), err.BadId())
	assert.Contains(t, err.Error(), "BadKeyboard")
}
