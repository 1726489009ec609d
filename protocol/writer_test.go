package protocol_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/imubridge/protocol"
)

var referenceFrame = protocol.StatusFrame{
	SupplyVoltage:  5000,
	EnvTemperature: 250,
	Yaw:            150,
	Pitch:          -100,
	Roll:           75,
}

var _ = Describe("Writer", func() {
	Describe("EncodeCommand", func() {
		It("encodes start with a little-endian interval", func() {
			b, err := protocol.EncodeCommand(protocol.StartCommand{Interval: 1000})
			Expect(err).To(Succeed())
			Expect(string(b)).To(Equal("#03E803\r\n"))
			Expect(b).To(HaveLen(protocol.StartCommandSize))
		})

		It("accepts pointers to commands", func() {
			b, err := protocol.EncodeCommand(&protocol.StartCommand{Interval: 1})
			Expect(err).To(Succeed())
			Expect(string(b)).To(Equal("#030100\r\n"))
		})

		It("encodes stop", func() {
			b, err := protocol.EncodeCommand(protocol.StopCommand{})
			Expect(err).To(Succeed())
			Expect(string(b)).To(Equal("#09\r\n"))
			Expect(b).To(HaveLen(protocol.StopCommandSize))
		})

		It("rejects a zero interval", func() {
			_, err := protocol.EncodeCommand(protocol.StartCommand{Interval: 0})
			Expect(err).To(MatchError(protocol.ErrInvalidInterval))
		})

		It("rejects a nil command", func() {
			_, err := protocol.EncodeCommand(nil)
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())
		})

		It("round trips every boundary interval", func() {
			for _, interval := range []uint16{1, 2, 255, 256, 1000, 32768, 65534, 65535} {
				b, err := protocol.EncodeCommand(protocol.StartCommand{Interval: interval})
				Expect(err).To(Succeed())

				cmd, err := protocol.DecodeCommand(b)
				Expect(err).To(Succeed())
				Expect(cmd).To(Equal(protocol.StartCommand{Interval: interval}))
			}
		})
	})

	Describe("EncodeStatus", func() {
		It("encodes the reference frame", func() {
			b := protocol.EncodeStatus(referenceFrame)
			Expect(string(b)).To(Equal("$118813FA0096009CFF4B00\r\n"))
			Expect(b).To(HaveLen(protocol.StatusFrameSize))
		})

		It("uses uppercase hex", func() {
			b := protocol.EncodeStatus(protocol.StatusFrame{SupplyVoltage: 0xABCD})
			Expect(string(b)).To(HavePrefix("$11CDAB"))
		})

		It("round trips negative and extreme values", func() {
			frames := []protocol.StatusFrame{
				{},
				referenceFrame,
				{SupplyVoltage: 65535, EnvTemperature: -32768, Yaw: 32767, Pitch: -1, Roll: 1},
			}

			for _, f := range frames {
				decoded, err := protocol.DecodeStatus(protocol.EncodeStatus(f))
				Expect(err).To(Succeed())
				Expect(decoded).To(Equal(f))
			}
		})
	})

	Describe("WriteCommand / WriteStatus", func() {
		It("writes the encoded command", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteCommand(w, protocol.StopCommand{})).To(Succeed())
			Expect(w.String()).To(Equal("#09\r\n"))
		})

		It("writes nothing for an invalid command", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteCommand(w, protocol.StartCommand{})).To(MatchError(protocol.ErrInvalidInterval))
			Expect(w.Len()).To(BeZero())
		})

		It("writes the encoded frame", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteStatus(w, referenceFrame)).To(Succeed())
			Expect(w.String()).To(HaveSuffix("\r\n"))
			Expect(w.Len()).To(Equal(protocol.StatusFrameSize))
		})
	})
})
