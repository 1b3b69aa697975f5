package iface

import (
	"strings"

	"github.com/thyrook/boardwatch/internal/vision"
)

// RenderBoard draws a scan as text, oriented the way it appears on screen.
// Pieces are ○ (white) and ● (black); bare squares are □ (light) and ■ (dark).
func RenderBoard(statuses [64]vision.SquareStatus, p vision.Perspective) string {
	var sb strings.Builder

	files := "  a b c d e f g h\n"
	if p == vision.BlackBottom {
		files = "  h g f e d c b a\n"
	}

	sb.WriteString(files)
	for row := 0; row < vision.BoardSize; row++ {
		index := vision.IndexAt(row, 0, p)
		sb.WriteByte(byte('1' + index/8))
		sb.WriteByte(' ')
		for col := 0; col < vision.BoardSize; col++ {
			index = vision.IndexAt(row, col, p)
			switch statuses[index] {
			case vision.White:
				sb.WriteString("○")
			case vision.Black:
				sb.WriteString("●")
			default:
				if (index%8+index/8)%2 == 0 {
					sb.WriteString("■")
				} else {
					sb.WriteString("□")
				}
			}
			if col < vision.BoardSize-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// DescribeMove turns a UCI move into a short phrase, e.g. "e2 to e4"
func DescribeMove(m vision.Move) string {
	uci := m.String()
	if len(uci) < 4 {
		return uci
	}

	phrase := uci[0:2] + " to " + uci[2:4]
	if len(uci) == 5 {
		promo := map[byte]string{'q': "queen", 'r': "rook", 'b': "bishop", 'n': "knight"}[uci[4]]
		if promo != "" {
			phrase += ", promoting to " + promo
		}
	}
	return phrase
}
