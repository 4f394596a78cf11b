// Command mockcontroller emulates one or more Eurotherm instruments on real
// or virtual serial ports, for exercising the supervisor daemon without
// physical hardware. It speaks the same register map internal/driver/generic.go
// reads: the vendor float-register indirection at 0x8000+2*addr for PVIN,
// TGSP, WRKOP, WKGSP, plus the integer RmSP/LR/STAT/AcALL registers.
//
// Adapted from the teacher's cmd/mocktty, trimmed to the RTU-over-serial path
// and the two function codes the supervisor actually issues (Read Holding
// Registers, Write Single Register), with the generic register store replaced
// by the Eurotherm float layout and a first-order thermal model driving PVIN
// toward whichever setpoint is currently selected. Serial port opening and
// socat pseudo-tty pairing (grounded on the teacher's internal/utils/rtu.go)
// are inlined below rather than kept as a separate package, since this
// binary is their only caller.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goburrow/serial"
	"gopkg.in/yaml.v3"
)

// Config is the mockcontroller YAML schema: one serial endpoint per simulated
// instrument.
type Config struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

type Endpoint struct {
	Name       string  `yaml:"name"`
	SerialPort string  `yaml:"serial_port"`
	SlaveID    uint8   `yaml:"slave_id"`
	BaudRate   int     `yaml:"baud_rate"`
	InitialPV  float64 `yaml:"initial_pv"`
	InitialSP  float64 `yaml:"initial_sp"`
	TimeConst  float64 `yaml:"time_constant_seconds"`

	SpawnSocat bool   `yaml:"spawn_socat"`
	SocatLink  string `yaml:"socat_link"`
	SocatPeer  string `yaml:"socat_peer"`
}

func loadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	for i := range cfg.Endpoints {
		if cfg.Endpoints[i].SlaveID == 0 {
			cfg.Endpoints[i].SlaveID = 1
		}
		if cfg.Endpoints[i].TimeConst <= 0 {
			cfg.Endpoints[i].TimeConst = 20
		}
	}
	return cfg, nil
}

// Register addresses, mirroring internal/driver/generic.go's unexported
// constants (this binary is deliberately the mirror image of that driver).
const (
	regPVIN  uint16 = 1
	regTGSP  uint16 = 2
	regWRKOP uint16 = 4
	regWKGSP uint16 = 5
	regRmSP  uint16 = 26
	regLR    uint16 = 276
	regSTAT  uint16 = 75
	regAcALL uint16 = 274
)

func floatRegisterAddress(addr uint16) uint16 { return 0x8000 + 2*addr }

// instrument holds one simulated Eurotherm's live state and is safe for
// concurrent use by the polling goroutine and the RTU request handler.
type instrument struct {
	mu sync.Mutex

	pv         float64
	localSP    float64
	remoteSP   float64
	remoteSel  bool
	lastUpdate time.Time
	timeConst  float64

	holding map[uint16]uint16 // integer registers: RmSP, LR, STAT, AcALL
}

func newInstrument(initialPV, initialSP, timeConst float64) *instrument {
	return &instrument{
		pv:         initialPV,
		localSP:    initialSP,
		remoteSP:   initialSP,
		lastUpdate: time.Now(),
		timeConst:  timeConst,
		holding:    map[uint16]uint16{regLR: 0, regAcALL: 0},
	}
}

func (in *instrument) advance() (pv, sp, workingOutput float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	now := time.Now()
	dt := now.Sub(in.lastUpdate).Seconds()
	in.lastUpdate = now
	target := in.localSP
	if in.remoteSel {
		target = in.remoteSP
	}
	if dt > 0 {
		in.pv = target + (in.pv-target)*math.Exp(-dt/in.timeConst)
	}
	output := (target - in.pv) * 2
	if output < 0 {
		output = 0
	}
	if output > 100 {
		output = 100
	}
	return in.pv, target, output
}

func (in *instrument) readFloatBatch() [5]float32 {
	pv, working, output := in.advance()
	in.mu.Lock()
	defer in.mu.Unlock()
	var out [5]float32
	out[regPVIN-1] = float32(pv)
	out[regTGSP-1] = float32(in.localSP)
	out[regWRKOP-1] = float32(output)
	out[regWKGSP-1] = float32(working)
	return out
}

func (in *instrument) readHolding(addr uint16) uint16 {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch addr {
	case regRmSP:
		return uint16(math.Round(in.remoteSP))
	case regLR:
		return in.holding[regLR]
	case regSTAT:
		return in.holding[regSTAT]
	case regAcALL:
		return in.holding[regAcALL]
	default:
		return in.holding[addr]
	}
}

func (in *instrument) writeHolding(addr, value uint16) {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch addr {
	case regRmSP:
		in.remoteSP = float64(value)
	case regLR:
		in.holding[regLR] = value
		in.remoteSel = value != 0
	case regAcALL:
		in.holding[regAcALL] = value
		in.holding[regSTAT] = 0 // acknowledging clears the simulated alarm bits
	default:
		in.holding[addr] = value
	}
}

// handlePDU answers one Modbus RTU PDU (without slave id or CRC). Only the
// two function codes the supervisor's SerialBus issues are implemented; any
// other function is reported as illegal, matching a real instrument refusing
// codes it doesn't support.
func handlePDU(in *instrument, pdu []byte) []byte {
	if len(pdu) == 0 {
		return []byte{0x80, 0x01}
	}
	fn := pdu[0]
	switch fn {
	case 0x03: // Read Holding Registers
		if len(pdu) < 5 {
			return []byte{fn | 0x80, 0x03}
		}
		start := binary.BigEndian.Uint16(pdu[1:3])
		qty := binary.BigEndian.Uint16(pdu[3:5])
		if qty == 0 || qty > 125 {
			return []byte{fn | 0x80, 0x03}
		}
		data := make([]byte, qty*2)
		if start == floatRegisterAddress(regPVIN) && qty == 10 {
			floats := in.readFloatBatch()
			for i, f := range floats {
				bits := math.Float32bits(f)
				binary.BigEndian.PutUint16(data[i*4:i*4+2], uint16(bits))
				binary.BigEndian.PutUint16(data[i*4+2:i*4+4], uint16(bits>>16))
			}
		} else {
			for i := uint16(0); i < qty; i++ {
				binary.BigEndian.PutUint16(data[i*2:i*2+2], in.readHolding(start+i))
			}
		}
		return append([]byte{fn, byte(len(data))}, data...)
	case 0x06: // Write Single Register
		if len(pdu) < 5 {
			return []byte{fn | 0x80, 0x03}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		value := binary.BigEndian.Uint16(pdu[3:5])
		in.writeHolding(addr, value)
		return append([]byte{fn}, pdu[1:5]...)
	default:
		return []byte{fn | 0x80, 0x01}
	}
}

func crc16Modbus(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// serve reads RTU frames off rw until it errors or ctx is cancelled. It
// assumes one device per serial line, so the leading address byte is
// validated but otherwise unused for routing.
func serve(ctx context.Context, rw io.ReadWriteCloser, in *instrument, slaveID uint8) {
	for {
		head := make([]byte, 2)
		if _, err := readFull(rw, head); err != nil {
			return
		}
		address, fn := head[0], head[1]

		var restLen int
		switch fn {
		case 0x03, 0x06:
			restLen = 6 // start/value(2) + qty/value(2) + crc(2)
		default:
			return
		}
		rest := make([]byte, restLen)
		if _, err := readFull(rw, rest); err != nil {
			return
		}

		req := append([]byte{address, fn}, rest[:len(rest)-2]...)
		crcCalc := crc16Modbus(req)
		crcRecv := binary.LittleEndian.Uint16(rest[len(rest)-2:])
		if crcCalc != crcRecv {
			continue
		}
		if slaveID != 0 && address != slaveID {
			continue
		}

		respPDU := handlePDU(in, append([]byte{fn}, rest[:len(rest)-2]...))
		resp := append([]byte{address}, respPDU...)
		crc := crc16Modbus(resp)
		crcTail := make([]byte, 2)
		binary.LittleEndian.PutUint16(crcTail, crc)
		resp = append(resp, crcTail...)
		if _, err := rw.Write(resp); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func readFull(rw io.ReadWriteCloser, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := rw.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

// buildSocatPairCmd builds (without starting) the socat command that creates
// a raw, echo-less pseudo-tty pair: one end for this mock instrument, one for
// the supervisor's SerialBus to dial. Grounded on the teacher's
// internal/utils/rtu.go socat invocation.
func buildSocatPairCmd(ctx context.Context, link, peer string) *exec.Cmd {
	return exec.CommandContext(ctx, "socat",
		"-d", "-d",
		"pty,raw,echo=0,link="+link,
		"pty,raw,echo=0,link="+peer,
	)
}

// openSerialEndpoint opens address at 8-N-1 with Modbus RTU's conventional
// defaults filled in for any zero-valued field. Grounded on the teacher's
// internal/utils/rtu.go SerialParams/OpenSerial defaulting.
func openSerialEndpoint(address string, baudRate int) (io.ReadWriteCloser, error) {
	if baudRate == 0 {
		baudRate = 9600
	}
	return serial.Open(&serial.Config{
		Address:  address,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  10 * time.Second,
	})
}

func runEndpoint(ctx context.Context, ep Endpoint) error {
	var socatCmd *exec.Cmd
	if ep.SpawnSocat {
		socatCmd = buildSocatPairCmd(ctx, ep.SocatLink, ep.SocatPeer)
		if err := socatCmd.Start(); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond) // let socat create the pty pair before dialing it
	}

	rw, err := openSerialEndpoint(ep.SerialPort, ep.BaudRate)
	if err != nil {
		return err
	}
	defer rw.Close()

	in := newInstrument(ep.InitialPV, ep.InitialSP, ep.TimeConst)
	log.Printf("mockcontroller: %s listening on %s slave=%d", ep.Name, ep.SerialPort, ep.SlaveID)

	serve(ctx, rw, in, ep.SlaveID)
	if socatCmd != nil && socatCmd.Process != nil {
		_ = socatCmd.Process.Signal(syscall.SIGTERM)
	}
	return nil
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/mockcontroller.yaml", "path to mockcontroller YAML config")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if len(cfg.Endpoints) == 0 {
		log.Fatalf("config has no endpoints")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for _, ep := range cfg.Endpoints {
		wg.Add(1)
		go func(e Endpoint) {
			defer wg.Done()
			if err := runEndpoint(ctx, e); err != nil {
				log.Printf("mockcontroller: endpoint %s stopped: %v", e.Name, err)
			}
		}(ep)
	}
	wg.Wait()
}
