// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"strings"

	"github.com/roadlog-foundation/roadlog/lib/codec"
)

// Dump renders an event as one unlog line: the monotonic timestamp in
// seconds, the kind name, and a compact payload rendering. The output
// is for humans reading a support dump, not for machines — the format
// is not a contract.
func (e Event) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%14.6f) %s", e.MonoSeconds(), e.Kind)

	switch p := e.Payload.(type) {
	case nil:
		// Unmodeled payload: render the CBOR diagnostic notation so
		// the dump still shows what the device sent.
		if len(e.Raw) > 0 {
			if diag, err := codec.Diagnose(e.Raw); err == nil {
				fmt.Fprintf(&b, " %s", diag)
			} else {
				fmt.Fprintf(&b, " <%d bytes>", len(e.Raw))
			}
		}
	case *GpsFix:
		fmt.Fprintf(&b, " fix=%t lat=%.6f lng=%.6f speed=%.2f bearing=%.1f acc=%.1f",
			p.HasFix, p.Latitude, p.Longitude, p.SpeedMPS, p.BearingDeg, p.AccuracyM)
	case *Thumbnail:
		fmt.Fprintf(&b, " frame=%d jpeg=%d bytes", p.FrameID, len(p.Jpeg))
	case *CanData:
		fmt.Fprintf(&b, " frames=%d", len(p.Frames))
		for i, f := range p.Frames {
			if i == 8 {
				b.WriteString(" …")
				break
			}
			fmt.Fprintf(&b, " %03X:%x", f.Address, f.Data)
		}
	case *LogText:
		fmt.Fprintf(&b, " %s", strings.TrimSpace(p.Text))
	default:
		fmt.Fprintf(&b, " %+v", p)
	}
	return b.String()
}
