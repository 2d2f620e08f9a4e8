// Package receipts renders a printable booking receipt: a one-page PDF with
// the booking details and a QR code the attendant can scan at the gate.
package receipts

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"smartparking/pkg/model"
)

const (
	ContentType = "application/pdf"
	qrSize      = 256
	qrImageName = "booking-qr"
)

type Renderer interface {
	Render(booking *model.Booking) ([]byte, error)
}

type PDFRenderer struct {
	title string
}

func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "Parking Receipt"
	}
	return &PDFRenderer{title: title}
}

// QRPayload is the text encoded in the receipt's QR code:
// bookingID|slot|timeSlot|email.
func QRPayload(b *model.Booking) string {
	return strings.Join([]string{
		b.BookingID,
		strconv.Itoa(b.SlotNumber),
		b.TimeSlot,
		b.Email,
	}, "|")
}

func Filename(bookingID string) string {
	return "receipt-" + bookingID + ".pdf"
}

func (p *PDFRenderer) Render(b *model.Booking) ([]byte, error) {
	qrPNG, err := qrcode.Encode(QRPayload(b), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(p.title+" "+b.BookingID, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, p.title)
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range receiptRows(b) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions(qrImageName, 145, 30, 45, 45, false, imageOpts, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Present this receipt at the entrance. The slot is released automatically when the time slot ends.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func receiptRows(b *model.Booking) [][2]string {
	rows := [][2]string{
		{"Booking ID", b.BookingID},
		{"Name", b.Name},
		{"Email", b.Email},
		{"Vehicle", b.VehicleNumber},
	}
	if b.VehicleType != "" {
		rows = append(rows, [2]string{"Vehicle type", b.VehicleType})
	}
	rows = append(rows,
		[2]string{"Slot", strconv.Itoa(b.SlotNumber)},
		[2]string{"Time slot", b.TimeSlot},
		[2]string{"Booked at", bookedAt(b)},
		[2]string{"Status", b.Status},
	)
	return rows
}

func bookedAt(b *model.Booking) string {
	if !b.CreatedAt.IsZero() {
		return b.CreatedAt.Format(time.RFC1123)
	}
	return b.BookingTime
}
