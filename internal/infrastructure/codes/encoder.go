package codes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"

	"github.com/labdocs/backend/internal/domain/document"
)

// Symbology identifies the kind of code
type Symbology string

const (
	SymbologyQR      Symbology = "QR"
	SymbologyCode128 Symbology = "Code128"
)

// ErrorCorrection is the QR error correction level
type ErrorCorrection string

const (
	ErrorCorrectionL ErrorCorrection = "L"
	ErrorCorrectionM ErrorCorrection = "M"
	ErrorCorrectionQ ErrorCorrection = "Q"
	ErrorCorrectionH ErrorCorrection = "H"
)

func (e ErrorCorrection) level() (qr.ErrorCorrectionLevel, error) {
	switch ErrorCorrection(strings.ToUpper(string(e))) {
	case ErrorCorrectionL:
		return qr.L, nil
	case ErrorCorrectionM, "":
		return qr.M, nil
	case ErrorCorrectionQ:
		return qr.Q, nil
	case ErrorCorrectionH:
		return qr.H, nil
	}
	return qr.M, fmt.Errorf("unknown error correction level %q", e)
}

// EncodedCode is a rendered code ready to be placed on a page.
type EncodedCode struct {
	Payload   string
	Symbology Symbology
	// Image is the raster including the quiet zone.
	Image image.Image
	// PNG is Image encoded as PNG.
	PNG []byte
	// Modules is the symbol width in modules, without the quiet zone.
	Modules int
	// CheckSum is the Code 128 modulo-103 check value; zero for QR.
	CheckSum int
}

// DataURI returns the PNG as a data URI for inline HTML embedding.
func (c *EncodedCode) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)
}

// Width returns the raster width in pixels
func (c *EncodedCode) Width() int { return c.Image.Bounds().Dx() }

// Height returns the raster height in pixels
func (c *EncodedCode) Height() int { return c.Image.Bounds().Dy() }

// Config controls raster sizes.
type Config struct {
	ErrorCorrection ErrorCorrection
	// QuietZoneModules is the blank border around a QR symbol, in modules.
	QuietZoneModules int
	// BarcodeModuleWidth is the pixel width of the narrowest bar.
	BarcodeModuleWidth int
	// BarcodeHeight is the bar height in pixels.
	BarcodeHeight int
	// BarcodeQuietZoneModules is the blank margin left and right of the bars.
	BarcodeQuietZoneModules int
	// PixelsPerPoint sets the raster resolution for a requested size in points.
	PixelsPerPoint float64
}

// DefaultConfig returns the configuration used for print output.
func DefaultConfig() Config {
	return Config{
		ErrorCorrection:         ErrorCorrectionM,
		QuietZoneModules:        4,
		BarcodeModuleWidth:      2,
		BarcodeHeight:           60,
		BarcodeQuietZoneModules: 10,
		PixelsPerPoint:          4,
	}
}

// Encoder turns identifiers into QR and Code 128 rasters. It holds no
// mutable state and is safe for concurrent use.
type Encoder struct {
	config Config
	level  qr.ErrorCorrectionLevel
}

// NewEncoder creates an Encoder. Zero config fields fall back to defaults.
func NewEncoder(cfg Config) (*Encoder, error) {
	def := DefaultConfig()
	if cfg.QuietZoneModules <= 0 {
		cfg.QuietZoneModules = def.QuietZoneModules
	}
	if cfg.BarcodeModuleWidth <= 0 {
		cfg.BarcodeModuleWidth = def.BarcodeModuleWidth
	}
	if cfg.BarcodeHeight <= 0 {
		cfg.BarcodeHeight = def.BarcodeHeight
	}
	if cfg.BarcodeQuietZoneModules <= 0 {
		cfg.BarcodeQuietZoneModules = def.BarcodeQuietZoneModules
	}
	if cfg.PixelsPerPoint <= 0 {
		cfg.PixelsPerPoint = def.PixelsPerPoint
	}
	level, err := cfg.ErrorCorrection.level()
	if err != nil {
		return nil, err
	}
	return &Encoder{config: cfg, level: level}, nil
}

// NewDefaultEncoder creates an Encoder with DefaultConfig.
func NewDefaultEncoder() *Encoder {
	e, _ := NewEncoder(DefaultConfig())
	return e
}

// EncodeQR encodes payload as a QR code rendered to fit sizePt points
// (quiet zone included). The module matrix depends only on the payload and
// the error correction level, so the output is deterministic.
func (e *Encoder) EncodeQR(payload string, sizePt float64) (*EncodedCode, error) {
	if payload == "" {
		return nil, document.NewEncodingError("QR payload is empty", nil)
	}
	if sizePt <= 0 || math.IsNaN(sizePt) || math.IsInf(sizePt, 0) {
		return nil, document.NewEncodingError(fmt.Sprintf("invalid QR size %v", sizePt), nil)
	}

	symbol, err := qr.Encode(payload, e.level, qr.Auto)
	if err != nil {
		return nil, document.NewEncodingError("QR payload exceeds symbol capacity", err)
	}

	modules := symbol.Bounds().Dx()
	total := modules + 2*e.config.QuietZoneModules
	targetPx := int(math.Floor(sizePt * e.config.PixelsPerPoint))
	scale := targetPx / total
	if scale < 1 {
		return nil, document.NewEncodingError(
			fmt.Sprintf("QR size %.1fpt is smaller than the %d-module matrix", sizePt, total), nil)
	}

	scaled, err := barcode.Scale(symbol, modules*scale, modules*scale)
	if err != nil {
		return nil, document.NewEncodingError("scale QR code", err)
	}
	img := withQuietZone(scaled, e.config.QuietZoneModules*scale, e.config.QuietZoneModules*scale)

	pngData, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	return &EncodedCode{
		Payload:   payload,
		Symbology: SymbologyQR,
		Image:     img,
		PNG:       pngData,
		Modules:   modules,
	}, nil
}

// EncodeBarcode encodes payload as a Code 128 symbol with start code,
// modulo-103 check symbol and stop pattern. Only ASCII is encodable.
func (e *Encoder) EncodeBarcode(payload string) (*EncodedCode, error) {
	if payload == "" {
		return nil, document.NewEncodingError("barcode payload is empty", nil)
	}
	for i, r := range payload {
		if r > 127 {
			return nil, document.NewEncodingError(
				fmt.Sprintf("barcode payload has non-ASCII character %q at %d", r, i), nil)
		}
	}

	symbol, err := code128.Encode(payload)
	if err != nil {
		return nil, document.NewEncodingError("encode Code 128", err)
	}

	modules := symbol.Bounds().Dx()
	width := modules * e.config.BarcodeModuleWidth
	scaled, err := barcode.Scale(symbol, width, e.config.BarcodeHeight)
	if err != nil {
		return nil, document.NewEncodingError("scale Code 128", err)
	}
	quiet := e.config.BarcodeQuietZoneModules * e.config.BarcodeModuleWidth
	img := withQuietZone(scaled, quiet, e.config.BarcodeModuleWidth*2)

	pngData, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	return &EncodedCode{
		Payload:   payload,
		Symbology: SymbologyCode128,
		Image:     img,
		PNG:       pngData,
		Modules:   modules,
		CheckSum:  symbol.CheckSum(),
	}, nil
}

// QRPayload builds the JSON object carried by slip and report QR codes.
func QRPayload(patientID, visitID, name string) (string, error) {
	payload := struct {
		PatientID string `json:"patientId"`
		VisitID   string `json:"visitId"`
		Name      string `json:"name"`
	}{patientID, visitID, name}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", document.NewEncodingError("marshal QR payload", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func withQuietZone(src image.Image, padX, padY int) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()+2*padX, b.Dy()+2*padY))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(padX, padY, padX+b.Dx(), padY+b.Dy()), src, b.Min, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, document.NewEncodingError("encode PNG", err)
	}
	return buf.Bytes(), nil
}
