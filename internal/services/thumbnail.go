package services

import (
  "bytes"
  "fmt"
  "image"
  "image/color"
  "os"
  "strings"

  _ "image/jpeg"
  _ "image/png"

  "github.com/fogleman/gg"
  "github.com/golang/freetype/truetype"
  "golang.org/x/image/draw"
  "golang.org/x/image/font"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

// ThumbnailService produces the small preview cards shown in the asset
// browser and the matrix grid. Image uploads get a resized copy; text-like
// assets (text, cta, terms) get a generated card with the asset name on it.
type ThumbnailService interface {
  GenerateCard(name, assetType string) (bytes.Buffer, error)
  ResizeImage(raw []byte, maxSide int) (bytes.Buffer, error)
}

type thumbnailService struct {
  log      *logger.Logger
  fontFace font.Face
}

var cardColors = map[string]color.NRGBA{
  types.AssetTypeVideo:    {R: 0x4A, G: 0x5A, B: 0xE8, A: 0xFF},
  types.AssetTypeImage:    {R: 0x2E, G: 0x9E, B: 0x6F, A: 0xFF},
  types.AssetTypeText:     {R: 0x6B, G: 0x72, B: 0x80, A: 0xFF},
  types.AssetTypeAudio:    {R: 0xC2, G: 0x5E, B: 0xD1, A: 0xFF},
  types.AssetTypeGraphics: {R: 0xE8, G: 0x8A, B: 0x2D, A: 0xFF},
  types.AssetTypeCTA:      {R: 0xD9, G: 0x3B, B: 0x3B, A: 0xFF},
  types.AssetTypeTerms:    {R: 0x3B, G: 0x82, B: 0xA6, A: 0xFF},
}

var defaultCardColor = color.NRGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF}

func NewThumbnailService(log *logger.Logger) (ThumbnailService, error) {
  serviceLog := log.With("service", "ThumbnailService")

  fontPath := os.Getenv("THUMBNAIL_FONT")
  if strings.TrimSpace(fontPath) == "" {
    return nil, fmt.Errorf("Env var THUMBNAIL_FONT is empty")
  }
  serviceLog.Info("Loading thumbnail font", "font", fontPath)

  face, err := loadFontFace(fontPath, 28)
  if err != nil {
    return nil, fmt.Errorf("could not load thumbnail font: %w", err)
  }

  return &thumbnailService{
    log:      serviceLog,
    fontFace: face,
  }, nil
}

func (ts *thumbnailService) GenerateCard(name, assetType string) (bytes.Buffer, error) {
  const width, height = 320, 180

  dc := gg.NewContext(width, height)

  base, ok := cardColors[assetType]
  if !ok {
    base = defaultCardColor
  }
  dc.SetColor(base)
  dc.DrawRectangle(0, 0, float64(width), float64(height))
  dc.Fill()

  label := truncateLabel(name, 24)
  dc.SetFontFace(ts.fontFace)
  tw, th := dc.MeasureString(label)
  dc.SetColor(color.White)
  dc.DrawString(label, float64(width)/2-tw/2, float64(height)/2+th/2)

  typeTag := strings.ToUpper(assetType)
  ttw, _ := dc.MeasureString(typeTag)
  dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xB0})
  dc.DrawString(typeTag, float64(width)/2-ttw/2, float64(height)-18)

  var buf bytes.Buffer
  if err := dc.EncodePNG(&buf); err != nil {
    return buf, fmt.Errorf("failed to encode PNG: %w", err)
  }
  return buf, nil
}

func (ts *thumbnailService) ResizeImage(raw []byte, maxSide int) (bytes.Buffer, error) {
  var out bytes.Buffer

  img, _, err := image.Decode(bytes.NewReader(raw))
  if err != nil {
    return out, fmt.Errorf("decode image: %w", err)
  }

  b := img.Bounds()
  w, h := b.Dx(), b.Dy()
  if w <= 0 || h <= 0 {
    return out, fmt.Errorf("empty image")
  }

  scale := 1.0
  if w >= h && w > maxSide {
    scale = float64(maxSide) / float64(w)
  } else if h > w && h > maxSide {
    scale = float64(maxSide) / float64(h)
  }
  dw := int(float64(w) * scale)
  dh := int(float64(h) * scale)
  if dw < 1 {
    dw = 1
  }
  if dh < 1 {
    dh = 1
  }

  dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
  draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

  dc := gg.NewContextForRGBA(dst)
  if err := dc.EncodePNG(&out); err != nil {
    return out, fmt.Errorf("encode png: %w", err)
  }
  return out, nil
}

func truncateLabel(s string, max int) string {
  s = strings.TrimSpace(s)
  if s == "" {
    return "Untitled"
  }
  if len(s) <= max {
    return s
  }
  return s[:max-1] + "…"
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
  fontBytes, err := os.ReadFile(fontPath)
  if err != nil {
    return nil, fmt.Errorf("failed to read font file: %w", err)
  }
  parsedFont, err := truetype.Parse(fontBytes)
  if err != nil {
    return nil, fmt.Errorf("failed to parse TTF: %w", err)
  }
  face := truetype.NewFace(parsedFont, &truetype.Options{
    Size:    size,
    DPI:     72,
    Hinting: font.HintingNone,
  })
  return face, nil
}
