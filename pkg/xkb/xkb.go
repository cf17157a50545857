// Package xkb is the X client API for the part of the XKEYBOARD extension
// needed to follow the active keyboard group: UseExtension, SelectEvents,
// GetState, GetNames and the XKB event stream.
//
// It plugs into github.com/jezek/xgb the same way the generated
// extension packages do.
package xkb

import (
	"fmt"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

const extName = "XKEYBOARD"

// Version this package speaks.
const (
	MajorVersion = 1
	MinorVersion = 0
)

// IdUseCoreKbd addresses the core keyboard device.
const IdUseCoreKbd = 0x100

// Request opcodes.
const (
	opUseExtension = 0
	opSelectEvents = 1
	opGetState     = 4
	opGetNames     = 17
)

// EventType bits for SelectEvents.
const (
	EventTypeNewKeyboardNotify    = 1 << 0
	EventTypeMapNotify            = 1 << 1
	EventTypeStateNotify          = 1 << 2
	EventTypeControlsNotify       = 1 << 3
	EventTypeIndicatorStateNotify = 1 << 4
	EventTypeIndicatorMapNotify   = 1 << 5
	EventTypeNamesNotify          = 1 << 6
)

// StatePart bits as found in StateNotifyEvent.Changed.
const (
	StatePartModifierState = 1 << 0
	StatePartModifierBase  = 1 << 1
	StatePartModifierLatch = 1 << 2
	StatePartModifierLock  = 1 << 3
	StatePartGroupState    = 1 << 4
	StatePartGroupBase     = 1 << 5
	StatePartGroupLatch    = 1 << 6
	StatePartGroupLock     = 1 << 7
)

// StatePartGroupMask covers every group related StatePart bit.
const StatePartGroupMask = StatePartGroupState | StatePartGroupBase | StatePartGroupLatch | StatePartGroupLock

// NameDetail bits for GetNames, in wire order of the value list.
const (
	NameDetailKeycodes        = 1 << 0
	NameDetailGeometry        = 1 << 1
	NameDetailSymbols         = 1 << 2
	NameDetailPhysSymbols     = 1 << 3
	NameDetailTypes           = 1 << 4
	NameDetailCompat          = 1 << 5
	NameDetailKeyTypeNames    = 1 << 6
	NameDetailKTLevelNames    = 1 << 7
	NameDetailIndicatorNames  = 1 << 8
	NameDetailKeyNames        = 1 << 9
	NameDetailKeyAliases      = 1 << 10
	NameDetailVirtualModNames = 1 << 11
	NameDetailGroupNames      = 1 << 12
	NameDetailRGNames         = 1 << 13
)

// Init must be called before using the XKEYBOARD extension.
func Init(c *xgb.Conn) error {
	reply, err := xproto.QueryExtension(c, uint16(len(extName)), extName).Reply()
	switch {
	case err != nil:
		return err
	case !reply.Present:
		return xgb.Errorf("No extension named XKEYBOARD could be found on on the server.")
	}

	c.ExtLock.Lock()
	c.Extensions[extName] = reply.MajorOpcode
	c.ExtLock.Unlock()
	for evNum, fun := range xgb.NewExtEventFuncs[extName] {
		xgb.NewEventFuncs[int(reply.FirstEvent)+evNum] = fun
	}
	for errNum, fun := range xgb.NewExtErrorFuncs[extName] {
		xgb.NewErrorFuncs[int(reply.FirstError)+errNum] = fun
	}
	return nil
}

func init() {
	xgb.NewExtEventFuncs[extName] = make(map[int]xgb.NewEventFun)
	xgb.NewExtErrorFuncs[extName] = make(map[int]xgb.NewErrorFun)

	// every XKB event arrives on the extension's first event number
	xgb.NewExtEventFuncs[extName][0] = EventNew
	xgb.NewExtErrorFuncs[extName][BadKeyboard] = KeyboardErrorNew
}

func opcode(c *xgb.Conn, request string) byte {
	c.ExtLock.RLock()
	defer c.ExtLock.RUnlock()
	op, ok := c.Extensions[extName]
	if !ok {
		panic(fmt.Sprintf("Cannot issue request '%s' using the uninitialized extension 'XKEYBOARD'. xkb.Init(connObj) must be called first.", request))
	}
	return op
}

// UseExtensionCookie is a cookie used only for UseExtension requests.
type UseExtensionCookie struct {
	*xgb.Cookie
}

// UseExtension negotiates the protocol version. No other XKB request is
// honoured by the server before it.
func UseExtension(c *xgb.Conn, wantedMajor, wantedMinor uint16) UseExtensionCookie {
	op := opcode(c, "UseExtension")
	cookie := c.NewCookie(true, true)
	c.NewRequest(useExtensionRequest(op, wantedMajor, wantedMinor), cookie)
	return UseExtensionCookie{cookie}
}

// UseExtensionReply represents the data returned from a UseExtension request.
type UseExtensionReply struct {
	Sequence    uint16
	Length      uint32
	Supported   bool
	ServerMajor uint16
	ServerMinor uint16
}

// Reply blocks and returns the reply data for a UseExtension request.
func (cook UseExtensionCookie) Reply() (*UseExtensionReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return useExtensionReply(buf), nil
}

func useExtensionReply(buf []byte) *UseExtensionReply {
	v := new(UseExtensionReply)
	v.Supported = buf[1] == 1
	v.Sequence = xgb.Get16(buf[2:])
	v.Length = xgb.Get32(buf[4:])
	v.ServerMajor = xgb.Get16(buf[8:])
	v.ServerMinor = xgb.Get16(buf[10:])
	return v
}

func useExtensionRequest(op byte, wantedMajor, wantedMinor uint16) []byte {
	size := 8
	buf := make([]byte, size)

	buf[0] = op
	buf[1] = opUseExtension
	xgb.Put16(buf[2:], uint16(size/4))
	xgb.Put16(buf[4:], wantedMajor)
	xgb.Put16(buf[6:], wantedMinor)

	return buf
}

// SelectEventsCookie is a cookie used only for SelectEvents requests.
type SelectEventsCookie struct {
	*xgb.Cookie
}

// SelectEventsChecked selects (selectAll) or deselects (clear) whole XKB
// event types for a device. Per-detail selection is not supported, so the
// affected event types are exactly clear|selectAll.
func SelectEventsChecked(c *xgb.Conn, deviceSpec uint16, clear, selectAll, affectMap, mapParts uint16) SelectEventsCookie {
	op := opcode(c, "SelectEvents")
	cookie := c.NewCookie(true, false)
	c.NewRequest(selectEventsRequest(op, deviceSpec, clear, selectAll, affectMap, mapParts), cookie)
	return SelectEventsCookie{cookie}
}

// Check returns an error if one occurred for checked requests that are not
// expecting a reply.
func (cook SelectEventsCookie) Check() error {
	return cook.Cookie.Check()
}

func selectEventsRequest(op byte, deviceSpec, clear, selectAll, affectMap, mapParts uint16) []byte {
	size := 16
	buf := make([]byte, size)

	buf[0] = op
	buf[1] = opSelectEvents
	xgb.Put16(buf[2:], uint16(size/4))
	xgb.Put16(buf[4:], deviceSpec)
	xgb.Put16(buf[6:], clear|selectAll)
	xgb.Put16(buf[8:], clear)
	xgb.Put16(buf[10:], selectAll)
	xgb.Put16(buf[12:], affectMap)
	xgb.Put16(buf[14:], mapParts)

	return buf
}

// GetStateCookie is a cookie used only for GetState requests.
type GetStateCookie struct {
	*xgb.Cookie
}

func GetState(c *xgb.Conn, deviceSpec uint16) GetStateCookie {
	op := opcode(c, "GetState")
	cookie := c.NewCookie(true, true)
	c.NewRequest(getStateRequest(op, deviceSpec), cookie)
	return GetStateCookie{cookie}
}

// GetStateReply represents the data returned from a GetState request.
type GetStateReply struct {
	Sequence     uint16
	Length       uint32
	DeviceID     byte
	Mods         byte
	BaseMods     byte
	LatchedMods  byte
	LockedMods   byte
	Group        byte
	LockedGroup  byte
	BaseGroup    int16
	LatchedGroup int16
	PtrBtnState  uint16
}

// Reply blocks and returns the reply data for a GetState request.
func (cook GetStateCookie) Reply() (*GetStateReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return getStateReply(buf), nil
}

func getStateReply(buf []byte) *GetStateReply {
	v := new(GetStateReply)
	v.DeviceID = buf[1]
	v.Sequence = xgb.Get16(buf[2:])
	v.Length = xgb.Get32(buf[4:])
	v.Mods = buf[8]
	v.BaseMods = buf[9]
	v.LatchedMods = buf[10]
	v.LockedMods = buf[11]
	v.Group = buf[12]
	v.LockedGroup = buf[13]
	v.BaseGroup = int16(xgb.Get16(buf[14:]))
	v.LatchedGroup = int16(xgb.Get16(buf[16:]))
	v.PtrBtnState = xgb.Get16(buf[24:])
	return v
}

func getStateRequest(op byte, deviceSpec uint16) []byte {
	size := 8
	buf := make([]byte, size)

	buf[0] = op
	buf[1] = opGetState
	xgb.Put16(buf[2:], uint16(size/4))
	xgb.Put16(buf[4:], deviceSpec)
	// 2 bytes padding

	return buf
}

// GetNamesCookie is a cookie used only for GetNames requests.
type GetNamesCookie struct {
	*xgb.Cookie
}

func GetNames(c *xgb.Conn, deviceSpec uint16, which uint32) GetNamesCookie {
	op := opcode(c, "GetNames")
	cookie := c.NewCookie(true, true)
	c.NewRequest(getNamesRequest(op, deviceSpec, which), cookie)
	return GetNamesCookie{cookie}
}

// GetNamesReply represents the data returned from a GetNames request. Only
// the group names are decoded from the value list; everything before them
// is skipped.
type GetNamesReply struct {
	Sequence    uint16
	Length      uint32
	DeviceID    byte
	Which       uint32
	NTypes      byte
	GroupNames  byte
	VirtualMods uint16
	Indicators  uint32
	Groups      []xproto.Atom
}

// Reply blocks and returns the reply data for a GetNames request.
func (cook GetNamesCookie) Reply() (*GetNamesReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return getNamesReply(buf)
}

func getNamesReply(buf []byte) (*GetNamesReply, error) {
	if len(buf) < 32 {
		return nil, fmt.Errorf("GetNames reply too short: %d bytes", len(buf))
	}

	v := new(GetNamesReply)
	v.DeviceID = buf[1]
	v.Sequence = xgb.Get16(buf[2:])
	v.Length = xgb.Get32(buf[4:])
	v.Which = xgb.Get32(buf[8:])
	v.NTypes = buf[14]
	v.GroupNames = buf[15]
	v.VirtualMods = xgb.Get16(buf[16:])
	v.Indicators = xgb.Get32(buf[20:])

	if v.Which&NameDetailGroupNames == 0 {
		return v, nil
	}

	b := 32
	for _, single := range []uint32{
		NameDetailKeycodes, NameDetailGeometry, NameDetailSymbols,
		NameDetailPhysSymbols, NameDetailTypes, NameDetailCompat,
	} {
		if v.Which&single != 0 {
			b += 4
		}
	}
	if v.Which&NameDetailKeyTypeNames != 0 {
		b += 4 * int(v.NTypes)
	}
	if v.Which&NameDetailKTLevelNames != 0 {
		if len(buf) < b+int(v.NTypes) {
			return nil, fmt.Errorf("GetNames reply truncated in level counts")
		}
		levels := 0
		for _, n := range buf[b : b+int(v.NTypes)] {
			levels += int(n)
		}
		b += xgb.Pad(int(v.NTypes)) + 4*levels
	}
	if v.Which&NameDetailIndicatorNames != 0 {
		b += 4 * xgb.PopCount(int(v.Indicators))
	}
	if v.Which&NameDetailVirtualModNames != 0 {
		b += 4 * xgb.PopCount(int(v.VirtualMods))
	}

	n := xgb.PopCount(int(v.GroupNames))
	if len(buf) < b+4*n {
		return nil, fmt.Errorf("GetNames reply truncated: need %d bytes for %d group names, have %d",
			b+4*n, n, len(buf))
	}

	v.Groups = make([]xproto.Atom, n)
	for i := 0; i < n; i++ {
		v.Groups[i] = xproto.Atom(xgb.Get32(buf[b:]))
		b += 4
	}

	return v, nil
}

func getNamesRequest(op byte, deviceSpec uint16, which uint32) []byte {
	size := 12
	buf := make([]byte, size)

	buf[0] = op
	buf[1] = opGetNames
	xgb.Put16(buf[2:], uint16(size/4))
	xgb.Put16(buf[4:], deviceSpec)
	// 2 bytes padding
	xgb.Put32(buf[8:], which)

	return buf
}
