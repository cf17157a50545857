package xkb

import (
	"fmt"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// XKB event subtypes, carried in the second byte of every XKB event.
const (
	NewKeyboardNotify     = 0
	MapNotify             = 1
	StateNotify           = 2
	ControlsNotify        = 3
	IndicatorStateNotify  = 4
	IndicatorMapNotify    = 5
	NamesNotify           = 6
	CompatMapNotify       = 7
	BellNotify            = 8
	ActionMessage         = 9
	AccessXNotify         = 10
	ExtensionDeviceNotify = 11
)

// EventNew dispatches on the XKB subtype. Subtypes without a dedicated
// decoder come back as a NotifyEvent.
func EventNew(buf []byte) xgb.Event {
	switch buf[1] {
	case StateNotify:
		return StateNotifyEventNew(buf)
	default:
		return NotifyEventNew(buf)
	}
}

// NotifyEvent is the common header shared by all XKB events.
type NotifyEvent struct {
	XkbType  byte
	Sequence uint16
	Time     xproto.Timestamp
	DeviceID byte

	raw []byte
}

// NotifyEventNew constructs a NotifyEvent value that implements xgb.Event from a byte slice.
func NotifyEventNew(buf []byte) xgb.Event {
	v := NotifyEvent{}
	v.XkbType = buf[1]
	v.Sequence = xgb.Get16(buf[2:])
	v.Time = xproto.Timestamp(xgb.Get32(buf[4:]))
	v.DeviceID = buf[8]
	v.raw = append([]byte(nil), buf...)
	return v
}

// Bytes returns the raw event as received.
func (v NotifyEvent) Bytes() []byte {
	return v.raw
}

// SequenceId returns the sequence id attached to the event.
func (v NotifyEvent) SequenceId() uint16 {
	return v.Sequence
}

func (v NotifyEvent) String() string {
	return fmt.Sprintf("XkbNotify {XkbType: %d, Sequence: %d, Time: %d, DeviceID: %d}",
		v.XkbType, v.Sequence, v.Time, v.DeviceID)
}

// StateNotifyEvent reports a keyboard state change: modifiers, groups or
// pointer buttons. Changed holds the StatePart bits that moved.
type StateNotifyEvent struct {
	Sequence         uint16
	Time             xproto.Timestamp
	DeviceID         byte
	Mods             byte
	BaseMods         byte
	LatchedMods      byte
	LockedMods       byte
	Group            byte
	BaseGroup        int16
	LatchedGroup     int16
	LockedGroup      byte
	CompatState      byte
	GrabMods         byte
	CompatGrabMods   byte
	LookupMods       byte
	CompatLookupMods byte
	PtrBtnState      uint16
	Changed          uint16
	Keycode          xproto.Keycode
	EventType        byte
	RequestMajor     byte
	RequestMinor     byte
}

// StateNotifyEventNew constructs a StateNotifyEvent value that implements xgb.Event from a byte slice.
func StateNotifyEventNew(buf []byte) xgb.Event {
	v := StateNotifyEvent{}
	b := 2 // event number and xkb subtype

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Time = xproto.Timestamp(xgb.Get32(buf[b:]))
	b += 4

	v.DeviceID = buf[b]
	v.Mods = buf[b+1]
	v.BaseMods = buf[b+2]
	v.LatchedMods = buf[b+3]
	v.LockedMods = buf[b+4]
	v.Group = buf[b+5]
	b += 6

	v.BaseGroup = int16(xgb.Get16(buf[b:]))
	b += 2

	v.LatchedGroup = int16(xgb.Get16(buf[b:]))
	b += 2

	v.LockedGroup = buf[b]
	v.CompatState = buf[b+1]
	v.GrabMods = buf[b+2]
	v.CompatGrabMods = buf[b+3]
	v.LookupMods = buf[b+4]
	v.CompatLookupMods = buf[b+5]
	b += 6

	v.PtrBtnState = xgb.Get16(buf[b:])
	b += 2

	v.Changed = xgb.Get16(buf[b:])
	b += 2

	v.Keycode = xproto.Keycode(buf[b])
	v.EventType = buf[b+1]
	v.RequestMajor = buf[b+2]
	v.RequestMinor = buf[b+3]

	return v
}

// Bytes converts a StateNotifyEvent value to a byte slice. The event
// number is left at zero since it depends on the connection.
func (v StateNotifyEvent) Bytes() []byte {
	buf := make([]byte, 32)

	buf[1] = StateNotify
	xgb.Put16(buf[2:], v.Sequence)
	xgb.Put32(buf[4:], uint32(v.Time))
	buf[8] = v.DeviceID
	buf[9] = v.Mods
	buf[10] = v.BaseMods
	buf[11] = v.LatchedMods
	buf[12] = v.LockedMods
	buf[13] = v.Group
	xgb.Put16(buf[14:], uint16(v.BaseGroup))
	xgb.Put16(buf[16:], uint16(v.LatchedGroup))
	buf[18] = v.LockedGroup
	buf[19] = v.CompatState
	buf[20] = v.GrabMods
	buf[21] = v.CompatGrabMods
	buf[22] = v.LookupMods
	buf[23] = v.CompatLookupMods
	xgb.Put16(buf[24:], v.PtrBtnState)
	xgb.Put16(buf[26:], v.Changed)
	buf[28] = byte(v.Keycode)
	buf[29] = v.EventType
	buf[30] = v.RequestMajor
	buf[31] = v.RequestMinor

	return buf
}

// SequenceId returns the sequence id attached to the StateNotify event.
func (v StateNotifyEvent) SequenceId() uint16 {
	return v.Sequence
}

// GroupChanged reports whether any group component of the state moved.
func (v StateNotifyEvent) GroupChanged() bool {
	return v.Changed&StatePartGroupMask != 0
}

func (v StateNotifyEvent) String() string {
	return fmt.Sprintf("StateNotify {Sequence: %d, Time: %d, DeviceID: %d, Group: %d, BaseGroup: %d, LatchedGroup: %d, LockedGroup: %d, Changed: %#x}",
		v.Sequence, v.Time, v.DeviceID, v.Group, v.BaseGroup, v.LatchedGroup, v.LockedGroup, v.Changed)
}

// BadKeyboard is the error number for a KeyboardError.
const BadKeyboard = 0

type KeyboardError struct {
	Sequence    uint16
	NiceName    string
	Value       uint32
	MinorOpcode uint16
	MajorOpcode byte
}

// KeyboardErrorNew constructs a KeyboardError value that implements xgb.Error from a byte slice.
func KeyboardErrorNew(buf []byte) xgb.Error {
	v := KeyboardError{}
	v.NiceName = "Keyboard"
	v.Sequence = xgb.Get16(buf[2:])
	v.Value = xgb.Get32(buf[4:])
	v.MinorOpcode = xgb.Get16(buf[8:])
	v.MajorOpcode = buf[10]
	return v
}

// SequenceId returns the sequence id attached to the BadKeyboard error.
func (err KeyboardError) SequenceId() uint16 {
	return err.Sequence
}

// BadId returns the 'BadValue' number if one exists for the BadKeyboard error. If no bad value exists, 0 is returned.
func (err KeyboardError) BadId() uint32 {
	return err.Value
}

func (err KeyboardError) Error() string {
	return fmt.Sprintf("BadKeyboard {Sequence: %d, Value: %d, MinorOpcode: %d, MajorOpcode: %d}",
		err.Sequence, err.Value, err.MinorOpcode, err.MajorOpcode)
}
