// Package pdftest builds minimal PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strconv"
)

// Letter and A4 page sizes in points.
var (
	Letter = [2]float64{612, 792}
	A4     = [2]float64{595, 842}
)

// Build returns a valid PDF with one empty page per size, in order.
func Build(sizes ...[2]float64) []byte {
	if len(sizes) == 0 {
		sizes = [][2]float64{Letter}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	// 1: catalog, 2: pages, then a page and a content stream per page.
	objCount := 2 + 2*len(sizes)
	offsets := make([]int, objCount+1)

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")

	kids := make([]string, len(sizes))
	for i := range sizes {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	offsets[2] = buf.Len()
	fmt.Fprintf(&buf, "2 0 obj\n<</Type/Pages/Kids[%s]/Count %d>>\nendobj\n", joinSpace(kids), len(sizes))

	for i, s := range sizes {
		pageObj := 3 + 2*i
		contentObj := pageObj + 1

		offsets[pageObj] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 %s %s]/Resources<<>>/Contents %d 0 R>>\nendobj\n",
			pageObj, num(s[0]), num(s[1]), contentObj)

		offsets[contentObj] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<</Length 0>>\nstream\n\nendstream\nendobj\n", contentObj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", objCount+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= objCount; i++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[i], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", objCount+1, xref)
	return buf.Bytes()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinSpace(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}
