package eventlog

import (
	"encoding/binary"
	"fmt"
)

var le = binary.LittleEndian

func (h Header) encode(buf []byte) {
	le.PutUint32(buf[0:4], h.Magic)
	le.PutUint32(buf[4:8], h.Version)
	le.PutUint64(buf[8:16], h.StartTime)
}

func decodeHeader(buf []byte) Header {
	return Header{
		Magic:     le.Uint32(buf[0:4]),
		Version:   le.Uint32(buf[4:8]),
		StartTime: le.Uint64(buf[8:16]),
	}
}

func (h Header) validate() string {
	if h.Magic != Magic {
		return fmt.Sprintf("bad magic 0x%08X", h.Magic)
	}
	if h.Version != Version {
		return fmt.Sprintf("unsupported version %d", h.Version)
	}
	return ""
}

func (e Event) encode(buf []byte) {
	le.PutUint32(buf[0:4], uint32(e.Type))
	le.PutUint64(buf[4:12], e.TUs)
	le.PutUint32(buf[12:16], uint32(e.A))
	le.PutUint32(buf[16:20], uint32(e.B))
	le.PutUint32(buf[20:24], uint32(e.C))
}

func decodeEvent(buf []byte) Event {
	return Event{
		Type: EventType(le.Uint32(buf[0:4])),
		TUs:  le.Uint64(buf[4:12]),
		A:    int32(le.Uint32(buf[12:16])),
		B:    int32(le.Uint32(buf[16:20])),
		C:    int32(le.Uint32(buf[20:24])),
	}
}
