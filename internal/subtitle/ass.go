package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Some players care about the BOM, so the header carries one.
const assHeader = "\xef\xbb\xbf[Script Info]\r\n" +
	"ScriptType: v4.00+\r\n" +
	"\r\n" +
	"[V4+ Styles]\r\n" +
	"Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
	"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
	"Alignment, MarginL, MarginR, MarginV, Encoding\r\n" +
	// Captions render bottom-center; annotations are top-aligned and tinted
	// so dialogue and overlays stay visually distinct.
	"Style: Caption,Arial,20,&H00FFFFFF,&H00DFDFDF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,2,0,0,10,1\r\n" +
	"Style: Annotation,Arial,20,&H0033CCFF,&H00DFDFDF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,8,0,0,10,1\r\n" +
	"\r\n" +
	"[Events]\r\n" +
	"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\r\n"

// WriteASS serializes an already-unified event sequence as an ASS subtitle
// script (CRLF line endings, UTF-8 with BOM).
func WriteASS(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(assHeader); err != nil {
		return err
	}
	for _, e := range events {
		line := fmt.Sprintf("Dialogue: 0,%s,%s,%s,%s,0,0,0,,%s\r\n",
			assTimestamp(e.Start), assTimestamp(e.End), e.Class, assText(e.Author), assText(e.Text))
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// assTimestamp renders a duration as the ASS h:mm:ss.cc timestamp.
func assTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	centis := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d",
		centis/360000, centis/6000%60, centis/100%60, centis%100)
}

var assEscaper = strings.NewReplacer(
	"\r\n", `\N`,
	"\n", `\N`,
	"\r", `\N`,
)

func assText(s string) string {
	return assEscaper.Replace(s)
}
