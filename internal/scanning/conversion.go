package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// receiptScanPrompt is the shared prompt used by all model providers for
// extracting a draft record from a REWE eBon.
const receiptScanPrompt = `You are analyzing a German grocery store receipt (REWE eBon). Read every line carefully and extract the data below.

Return ONLY valid JSON in this exact shape:
{
  "store_number": "", "store_name": "", "street": "", "postal_code": "", "city": "", "phone": "", "tax_id": "",
  "register_number": "", "receipt_number": "", "operator": "",
  "purchase_date": "DD.MM.YYYY", "purchase_time": "HH:MM",
  "device_start": "", "device_stop": "",
  "gross_total": "0,00", "net_total": "0,00", "tax_total": "0,00",
  "payment_method": "", "amount_tendered": "0,00", "change_given": "0,00",
  "bonus_points_redeemed": "", "bonus_points_collected": "", "bonus_points_balance": "",
  "fiscal_signature": "", "fiscal_counter": "", "device_serial": "",
  "items": [
    {"name": "", "type": "product|deposit|return|correction", "unit_price": "", "quantity": "1",
     "unit": "", "weight": "", "price_per_unit": "", "total": "0,00",
     "tax_code": "A|B", "tax_percent": "", "position": "1"}
  ],
  "tax_summary": [
    {"rate_code": "A", "rate_percent": "19", "net": "0,00", "tax": "0,00", "gross": "0,00"}
  ]
}

Hints for REWE receipts:
- "SUMME EUR" is the gross total. "Geg. BAR" or "Geg. EC-KARTE" is the payment line with the tendered amount. "Rückgeld" is the change.
- "UID Nr.: DE..." is the tax_id. "Markt:" is the store_number, "Kasse:" the register_number, "Bon-Nr.:" the receipt_number, "Bediener:" the operator.
- Pfand lines are deposits (type "deposit"), Leergut lines are returns (type "return").
- The tax table at the bottom has one row per rate code (A = 19%, B = 7%).
- Keep amounts exactly as printed, including the comma decimal separator.
- If a field is not on the receipt, use null. Do not invent values.
- Do not include any text before or after the JSON. Do not use markdown code blocks.`

// ExtractText pulls the embedded text layer out of a PDF. Digital eBons carry
// their full text; scanned paper returns an empty string and the caller should
// fall back to rendering pages for a vision model.
func ExtractText(pdfData []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extracting text from page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// pdfToImage converts a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Render the first page (eBons are single page)
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (photographed receipts from iPhones) needs its own decoder
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported attachment format. Supported: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with an HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// convertToPNG converts PDFs and non-PNG images to PNG format.
// Returns the PNG data and a boolean indicating if conversion occurred.
func convertToPNG(imageData []byte, mimeType string) ([]byte, bool, error) {
	if mimeType == "application/pdf" {
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, true, nil
	} else if mimeType != "image/png" || isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		pngData, err := imageToPNG(imageData, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, true, nil
	}
	return imageData, false, nil
}

// prepareImageData normalizes the MIME type and converts the attachment to
// PNG if needed. Returns the final image data, the MIME type to use, and
// whether conversion occurred.
func prepareImageData(imageData []byte, contentType string) ([]byte, string, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "application/pdf" // eBons arrive as PDF unless told otherwise
	}

	finalImageData, converted, err := convertToPNG(imageData, mimeType)
	if err != nil {
		return nil, "", false, err
	}

	// After conversion everything is PNG
	return finalImageData, "image/png", converted, nil
}
