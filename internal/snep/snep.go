// Package snep implements the per-SAP SNEP request/response dispatch
// layer riding over an LLCP data link, and holds the most recently
// received/sent NDEF message for console introspection.
package snep

import (
	"math"

	"github.com/nfcemu/nfcemu/internal/llcp"
	wire "github.com/nfcemu/nfcemu/internal/proto/snep"
	"github.com/nfcemu/nfcemu/pkg/metrics"
)

const reassemblyCapacity = 4096

// Endpoint holds the SNEP-layer state for a single NFC-DEP remote
// endpoint: the last PUT payload it received, available for console
// inspection via "nfc snep put" with no records.
type Endpoint struct {
	LastPut []byte

	// Metrics is optional; a nil value disables SNEP request metrics at
	// zero overhead.
	Metrics metrics.SNEPMetrics
}

// New returns an Endpoint with no buffered message.
func New() *Endpoint {
	return &Endpoint{}
}

// HandleFragment implements the 5-step SNEP dispatch algorithm against one
// inbound I-PDU information field, returning the reply information field to
// send back over the same data link, or nil if the message calls for no
// reply (RSP_SUCCESS, and friends carrying no data).
func (e *Endpoint) HandleFragment(dl *llcp.DataLink, info []byte) ([]byte, error) {
	const headerSize = 6

	if len(info) < headerSize {
		return wire.Encode(wire.RspBadRequest, nil), nil
	}

	hdr, err := wire.DecodeHeader(info)
	if err != nil {
		return wire.Encode(wire.RspBadRequest, nil), nil
	}

	snepLen := hdr.Len
	if uint64(snepLen) > math.MaxUint32-headerSize || int(snepLen)+headerSize != len(info) {
		return wire.Encode(wire.RspExcessData, nil), nil
	}

	if hdr.Major > wire.VersionMajor || (hdr.Major == wire.VersionMajor && hdr.Minor > wire.VersionMinor) {
		return wire.Encode(wire.RspUnsupportedVersion, nil), nil
	}

	if e.Metrics != nil {
		e.Metrics.RecordRequest(wire.MessageName(hdr.Msg))
	}

	switch hdr.Msg {
	case wire.ReqPut:
		if int(snepLen) > reassemblyCapacity {
			return wire.Encode(wire.RspExcessData, nil), nil
		}
		e.LastPut = append([]byte(nil), info[headerSize:]...)
		return wire.Encode(wire.RspSuccess, nil), nil

	case wire.RspSuccess:
		return nil, nil

	default:
		return wire.Encode(wire.RspNotImplemented, nil), nil
	}
}
