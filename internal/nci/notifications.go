package nci

// DiscoverNtfType is the trailing type byte of an RF_DISCOVER_NTF.
type DiscoverNtfType int

const (
	DiscoverLast DiscoverNtfType = iota
	DiscoverLimit
	DiscoverMore
)

// DiscoverNtfInputs carries the fields the caller (controller façade) must
// supply to build an RF_DISCOVER_NTF; id assignment and the RF-state
// transition are the caller's responsibility since they mutate shared
// state (the id allocator and rf_state).
type DiscoverNtfInputs struct {
	ID      byte
	RFProto byte
	Mode    byte
	Type    DiscoverNtfType
}

// BuildDiscoverNtf serializes an RF_DISCOVER_NTF payload: {id, rfproto,
// mode, nparams=0, type}.
func BuildDiscoverNtf(in DiscoverNtfInputs) []byte {
	return []byte{in.ID, in.RFProto, in.Mode, 0x00, byte(in.Type)}
}

// ActivatedNtfInputs carries the fields needed to build an
// RF_INTF_ACTIVATED_NTF. The tech-specific block is selected from Mode's
// low nibble (A=0x00, B=0x01, F=0x02, with the listen bit 0x80 masked
// off); SensRes/SelRes are only meaningful for NFC-A, and NFCID1 doubles
// as the NFC-F NFCID2 slot for F-mode endpoints since there is no
// separate field for it.
type ActivatedNtfInputs struct {
	ID        byte
	RFIface   byte
	RFProto   byte
	Mode      byte
	SensRes   [2]byte
	NFCID1    []byte
	SelRes    *byte
	NFCID3    [10]byte
	ListenMTO byte // time-out byte; only meaningful in listen modes
	IsListen  bool
}

// techModeA and techModeF are Mode's tech nibble with the listen bit
// masked off, per modeByte's A/B/F encoding (0x00/0x01/0x02).
const (
	techModeA byte = 0x00
	techModeF byte = 0x02
)

// llcpParamTail is the fixed LLCP general-bytes tail appended to every
// ATR_REQ/RES block: magic bytes, VERSION param (1.1), LTO param (250).
var llcpParamTail = []byte{0x46, 0x66, 0x6d, 0x01, 0x01, 0x11, 0x04, 0x01, 0xfa}

// buildTechParamsA serializes the NFC-A tech-specific block: SENS_RES(2),
// NFCID1 length + bytes, optional SEL_RES.
func buildTechParamsA(in ActivatedNtfInputs) []byte {
	p := append([]byte{}, in.SensRes[:]...)
	p = append(p, byte(len(in.NFCID1)))
	p = append(p, in.NFCID1...)
	if in.SelRes != nil {
		p = append(p, *in.SelRes)
	}
	return p
}

// buildTechParamsF serializes the NFC-F tech-specific block: a SENSF_RES
// response code followed by the 8-byte NFCID2 (carried in NFCID1, the
// field NFC-F endpoints reuse for their identifier).
func buildTechParamsF(in ActivatedNtfInputs) []byte {
	const sensfResCode = 0x01
	return append([]byte{sensfResCode}, in.NFCID1...)
}

// BuildActivatedNtf serializes the tech-specific block selected by Mode,
// the ATR_REQ/RES block (Digital section 14.6), and the trailing
// activation-params length byte.
func BuildActivatedNtf(in ActivatedNtfInputs) []byte {
	var buf []byte
	buf = append(buf, in.ID, in.RFIface, in.RFProto, in.Mode)

	var techParams []byte
	switch in.Mode &^ 0x80 {
	case techModeF:
		techParams = buildTechParamsF(in)
	default:
		techParams = buildTechParamsA(in)
	}
	buf = append(buf, byte(len(techParams)))
	buf = append(buf, techParams...)

	// ATR_REQ/RES block: NFCID3(10), DID=0, BS=0, BR=0, TO (listen modes
	// only), PP=0x02 (NFC_DEP_PP_G), LLCP general-bytes tail.
	atr := append([]byte{}, in.NFCID3[:]...)
	atr = append(atr, 0x00, 0x00, 0x00)
	if in.IsListen {
		atr = append(atr, in.ListenMTO)
	}
	atr = append(atr, 0x02)
	atr = append(atr, llcpParamTail...)
	buf = append(buf, byte(len(atr)))
	buf = append(buf, atr...)

	// Activation-params length byte: 0 (no additional activation
	// parameters beyond the two blocks above).
	buf = append(buf, 0x00)
	return buf
}

// BuildFieldInfoNtf serializes an RF_FIELD_INFO_NTF: a single status byte,
// always 0 (field detected) in this controller.
func BuildFieldInfoNtf() []byte {
	return []byte{0x00}
}
