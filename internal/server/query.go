package server

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/embdebug/rspd/internal/ptid"
	"github.com/embdebug/rspd/internal/target"
	"github.com/embdebug/rspd/internal/traceflags"
)

// handleQuery dispatches the 'q'/'Q' packet family (§4.10).
func (s *Server) handleQuery(pkt []byte) []byte {
	switch {
	case bytes.Equal(pkt, []byte("qC")):
		if s.haveMultiproc {
			return []byte("QC" + s.currentPtid.Encode())
		}
		return []byte(fmt.Sprintf("QC%x", s.currentPtid.Tid))

	case bytes.Equal(pkt, []byte("qfThreadInfo")):
		s.nextThreadInfoCursor = 0
		return s.nextThreadInfo()
	case bytes.Equal(pkt, []byte("qsThreadInfo")):
		return s.nextThreadInfo()

	case bytes.HasPrefix(pkt, []byte("qRcmd,")):
		return s.handleMonitorCommand(pkt[len("qRcmd,"):])

	case bytes.HasPrefix(pkt, []byte("qSupported")):
		return s.handleSupported(pkt)

	case bytes.HasPrefix(pkt, []byte("qSymbol")):
		return []byte("OK")

	case bytes.HasPrefix(pkt, []byte("qThreadExtraInfo,")):
		return []byte(hexcodec.AsciiToHex([]byte("Runnable")))

	case bytes.HasPrefix(pkt, []byte("qXfer:features:read:")):
		return s.handleXferFeaturesRead(pkt[len("qXfer:features:read:"):])

	case bytes.Equal(pkt, []byte("qAttached")):
		return []byte("1")
	case bytes.Equal(pkt, []byte("qOffsets")):
		return []byte{}

	case bytes.HasPrefix(pkt, []byte("QNonStop:")):
		return s.handleSetNonStop(pkt[len("QNonStop:"):])
	case bytes.Equal(pkt, []byte("QStartNoAckMode")):
		s.f.SetNoAckMode(true)
		return []byte("OK")

	default:
		return []byte{}
	}
}

func (s *Server) nextThreadInfo() []byte {
	if s.nextThreadInfoCursor >= s.cores.NumCores() {
		return []byte("l")
	}
	p := ptid.PTID{Pid: pidOf(s.nextThreadInfoCursor), Tid: 1}
	s.nextThreadInfoCursor++
	return []byte("m" + p.Encode())
}

func (s *Server) handleSetNonStop(tail []byte) []byte {
	switch {
	case bytes.Equal(tail, []byte("0")):
		s.stopMode = AllStop
	case bytes.Equal(tail, []byte("1")):
		s.stopMode = NonStop
	default:
		return []byte("E01")
	}
	return []byte("OK")
}

// handleSupported implements 'qSupported:...' (§4.10). PacketSize matches
// the framer's buffer size; multiprocess is only advertised back when the
// client asked for it and there is more than one core to name, and
// qXfer:features:read only when the target backs it.
func (s *Server) handleSupported(pkt []byte) []byte {
	s.haveMultiproc = bytes.Contains(pkt, []byte("multiprocess+")) && s.cores.NumCores() > 1

	var out bytes.Buffer
	fmt.Fprintf(&out, "PacketSize=%x", s.cfg.MaxPacket)
	out.WriteString(";QNonStop+;vContSupported+;QStartNoAckMode+")
	if s.haveMultiproc {
		out.WriteString(";multiprocess+")
	}
	if s.tgt.SupportsTargetXML() {
		out.WriteString(";qXfer:features:read+")
	}
	return out.Bytes()
}

// handleMonitorCommand implements 'qRcmd,<hex>' (§4.10.1). The decoded
// command is matched against the built-in monitor vocabulary; anything
// else is forwarded to the target's own Command hook. Most commands reply
// with an O-packet carrying the command's text output followed by a bare
// "OK"; a few (reset, timeout, real-timeout, cycle-timeout, echo, the
// "set ..." family) reply with a bare "OK" only, and "exit" replies with
// nothing at all, matching GdbServer.cpp's rspCommand/rspSetCommand/
// rspShowCommand.
func (s *Server) handleMonitorCommand(hexCmd []byte) []byte {
	raw, err := hexcodec.HexToAscii(hexCmd)
	if err != nil {
		return []byte("E01")
	}

	fields := bytes.Fields(raw)
	if len(fields) == 0 {
		return []byte("OK")
	}
	cmd := string(fields[0])
	rest := fields[1:]

	switch cmd {
	case "help":
		s.monitorOutput("commands: help reset exit timeout real-timeout " +
			"cycle-timeout real-timestamp timestamp cyclecount instrcount " +
			"echo set debug show debug set kill-core-on-exit show kill-core-on-exit\n")
		return []byte("OK")

	case "reset":
		rt := target.ResetWarm
		switch len(rest) {
		case 0:
		case 1:
			switch string(rest[0]) {
			case "cold":
				rt = target.ResetCold
			case "warm":
				rt = target.ResetWarm
			default:
				return []byte("E01")
			}
		default:
			return []byte("E01")
		}
		s.ResetCoreState()
		s.tgt.Reset(rt)
		return []byte("OK")

	case "exit":
		s.exitRequested = true
		return nil

	case "timeout", "real-timeout":
		d, err := parseMonitorDuration(rest)
		if err != nil {
			return []byte("E01")
		}
		s.timeout.SetReal(d)
		return []byte("OK")

	case "cycle-timeout":
		if len(rest) != 1 {
			return []byte("E01")
		}
		n, err := strconv.ParseUint(string(rest[0]), 0, 64)
		if err != nil {
			return []byte("E01")
		}
		s.timeout.SetCycle(n)
		return []byte("OK")

	case "real-timestamp":
		s.monitorOutput(fmt.Sprintf("%s\n", time.Now().Format(time.RFC3339Nano)))
		return []byte("OK")

	case "timestamp":
		s.monitorOutput(fmt.Sprintf("%f\n", s.tgt.TimeStamp()))
		return []byte("OK")

	case "cyclecount":
		s.monitorOutput(fmt.Sprintf("%d\n", s.tgt.CycleCount()))
		return []byte("OK")

	case "instrcount":
		s.monitorOutput(fmt.Sprintf("%d\n", s.tgt.InstrCount()))
		return []byte("OK")

	case "echo":
		s.log.Info(string(bytes.Join(rest, []byte(" "))))
		return []byte("OK")

	case "set":
		return s.monitorSet(rest)

	case "show":
		return s.monitorShow(rest)

	default:
		var out bytes.Buffer
		handled := s.tgt.Command(string(raw), func(line string) {
			out.WriteString(line)
			out.WriteByte('\n')
		})
		if !handled {
			return []byte("E01")
		}
		s.monitorOutput(out.String())
		return []byte("OK")
	}
}

func parseMonitorDuration(rest [][]byte) (time.Duration, error) {
	if len(rest) != 1 {
		return 0, fmt.Errorf("real-timeout: want one argument")
	}
	secs, err := strconv.ParseFloat(string(rest[0]), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseFlagState(tok string) (bool, bool) {
	switch strings.ToLower(tok) {
	case "0", "off", "false":
		return false, true
	case "1", "on", "true":
		return true, true
	default:
		return false, false
	}
}

// monitorSet implements "monitor set ..." (§4.10.1, GdbServer.cpp's
// rspSetCommand).
func (s *Server) monitorSet(rest [][]byte) []byte {
	if len(rest) == 0 {
		return []byte("E01")
	}
	switch string(rest[0]) {
	case "debug":
		if len(rest) < 2 || len(rest) > 4 {
			return []byte("E01")
		}
		name := traceflags.Name(rest[1])
		if !traceflags.Known(name) {
			return []byte("E01")
		}
		state := true
		if len(rest) >= 3 {
			var ok bool
			state, ok = parseFlagState(string(rest[2]))
			if !ok {
				return []byte("E02")
			}
		}
		value := ""
		if len(rest) == 4 {
			value = string(rest[3])
		}
		if err := s.trace.SetFlag(name, state, value); err != nil {
			s.log.WithError(err).Warn("monitor: set debug failed")
			return []byte("E01")
		}
		return []byte("OK")

	case "kill-core-on-exit":
		if len(rest) != 2 {
			return []byte("E01")
		}
		state, ok := parseFlagState(string(rest[1]))
		if !ok {
			return []byte("E02")
		}
		s.killCoreOnExit = state
		return []byte("OK")

	default:
		var out bytes.Buffer
		handled := s.tgt.Command("set "+string(bytes.Join(rest, []byte(" "))), func(line string) {
			out.WriteString(line)
			out.WriteByte('\n')
		})
		if !handled {
			return []byte("E04")
		}
		s.monitorOutput(out.String())
		return []byte("OK")
	}
}

// monitorShow implements "monitor show ..." (§4.10.1, GdbServer.cpp's
// rspShowCommand).
func (s *Server) monitorShow(rest [][]byte) []byte {
	if len(rest) == 0 {
		return []byte("E01")
	}
	switch string(rest[0]) {
	case "debug":
		if len(rest) == 1 {
			var out bytes.Buffer
			for _, n := range traceflags.All() {
				fmt.Fprintf(&out, "%s: %s\n", n, onOff(s.trace.Enabled(n)))
			}
			s.monitorOutput(out.String())
			return []byte("OK")
		}
		if len(rest) != 2 {
			return []byte("E01")
		}
		name := traceflags.Name(rest[1])
		if !traceflags.Known(name) {
			return []byte("E01")
		}
		s.monitorOutput(fmt.Sprintf("%s: %s (associated val = %q)\n", name, onOff(s.trace.Enabled(name)), s.trace.String(name)))
		return []byte("OK")

	case "kill-core-on-exit":
		s.monitorOutput(fmt.Sprintf("%v\n", s.killCoreOnExit))
		return []byte("OK")

	default:
		var out bytes.Buffer
		handled := s.tgt.Command("show "+string(bytes.Join(rest, []byte(" "))), func(line string) {
			out.WriteString(line)
			out.WriteByte('\n')
		})
		if !handled {
			return []byte("E04")
		}
		s.monitorOutput(out.String())
		return []byte("OK")
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// monitorOutput queues an O-packet carrying a monitor command's console
// text, to be written before the command's final "OK"/error reply
// (§4.10.1).
func (s *Server) monitorOutput(text string) {
	s.queueReply([]byte("O" + hexcodec.AsciiToHex([]byte(text))))
}
