package material

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ParseHexColor parses "#RRGGBB", "0xRRGGBB" or "RRGGBB" into an RGB colour in [0,1].
func ParseHexColor(s string) (mgl64.Vec3, error) {
	hex := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(hex, "#"):
		hex = hex[1:]
	case strings.HasPrefix(hex, "0x"), strings.HasPrefix(hex, "0X"):
		hex = hex[2:]
	}
	if len(hex) != 6 {
		return mgl64.Vec3{}, fmt.Errorf("invalid colour %q: want 6 hex digits", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return mgl64.Vec3{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}

	return mgl64.Vec3{
		float64((v>>16)&0xff) / 255,
		float64((v>>8)&0xff) / 255,
		float64(v&0xff) / 255,
	}, nil
}

// HexColor formats c as "#RRGGBB", clamping channels into [0,1].
func HexColor(c mgl64.Vec3) string {
	c = clampColor(c)
	return fmt.Sprintf("#%02X%02X%02X",
		uint8(math.Round(c[0]*255)),
		uint8(math.Round(c[1]*255)),
		uint8(math.Round(c[2]*255)),
	)
}

func mustHex(s string) mgl64.Vec3 {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
