package jpeg

// Marker bytes, each preceded by 0xff in the stream.
const (
	soiMarker  = 0xd8 // Start Of Image.
	app0Marker = 0xe0 // JFIF application segment.
	dqtMarker  = 0xdb // Define Quantization Table.
	sof0Marker = 0xc0 // Start Of Frame (Baseline Sequential).
	dhtMarker  = 0xc4 // Define Huffman Table.
	sosMarker  = 0xda // Start Of Scan.
	eoiMarker  = 0xd9 // End Of Image.
)

// nComponent is fixed: every image is coded as Y, Cb, Cr.
const nComponent = 3

// writeMarker writes a bare two-byte marker.
func (w *bitWriter) writeMarker(marker uint8) {
	w.buf[0] = 0xff
	w.buf[1] = marker
	w.write(w.buf[:2])
}

// writeMarkerHeader writes the header for a marker with the given length.
func (w *bitWriter) writeMarkerHeader(marker uint8, markerlen int) {
	w.buf[0] = 0xff
	w.buf[1] = marker
	w.buf[2] = uint8(markerlen >> 8)
	w.buf[3] = uint8(markerlen & 0xff)
	w.write(w.buf[:4])
}

// jfifHeader is the APP0 payload: "JFIF\x00", version 1.01, no density
// units, 1:1 aspect ratio and no thumbnail.
var jfifHeader = []byte{
	'J', 'F', 'I', 'F', 0x00,
	0x01, 0x01,
	0x00,
	0x00, 0x01, 0x00, 0x01,
	0x00, 0x00,
}

func (w *bitWriter) writeAPP0() {
	w.writeMarkerHeader(app0Marker, 2+len(jfifHeader))
	w.write(jfifHeader)
}

// writeDQT writes one Define Quantization Table segment per table.
func (w *bitWriter) writeDQT(quant *[nQuantIndex][blockSize]byte) {
	const markerlen = 2 + 1 + blockSize
	for i := range quant {
		w.writeMarkerHeader(dqtMarker, markerlen)
		// 8-bit precision, table id i.
		w.writeByte(uint8(i))
		w.write(quant[i][:])
	}
}

// writeSOF0 writes the Start Of Frame (Baseline) marker. The luma component
// is sampled 2x2 and the chroma components 1x1, i.e. 4:2:0.
func (w *bitWriter) writeSOF0(width, height int) {
	markerlen := 8 + 3*nComponent
	w.writeMarkerHeader(sof0Marker, markerlen)
	w.buf[0] = 8 // 8-bit precision.
	w.buf[1] = uint8(height >> 8)
	w.buf[2] = uint8(height & 0xff)
	w.buf[3] = uint8(width >> 8)
	w.buf[4] = uint8(width & 0xff)
	w.buf[5] = nComponent
	for i := 0; i < nComponent; i++ {
		w.buf[3*i+6] = uint8(i + 1)
		w.buf[3*i+7] = "\x22\x11\x11"[i]
		w.buf[3*i+8] = "\x00\x01\x01"[i]
	}
	w.write(w.buf[:6+3*nComponent])
}

// writeDHT writes one Define Huffman Table segment per table. The class and
// id byte is 0x00 (DC 0), 0x10 (AC 0), 0x01 (DC 1) and 0x11 (AC 1).
func (w *bitWriter) writeDHT() {
	for i, s := range theHuffmanSpec {
		w.writeMarkerHeader(dhtMarker, 2+1+16+len(s.value))
		w.writeByte("\x00\x10\x01\x11"[i])
		w.write(s.count[:])
		w.write(s.value)
	}
}

// sosHeader is the SOS marker "\xff\xda" followed by 12 bytes:
//   - the marker length "\x00\x0c",
//   - the number of components "\x03",
//   - component 1 uses DC table 0 and AC table 0 "\x01\x00",
//   - component 2 uses DC table 1 and AC table 1 "\x02\x11",
//   - component 3 uses DC table 1 and AC table 1 "\x03\x11",
//   - the bytes "\x00\x3f\x00". Section B.2.3 of ITU-T T.81 says that for
//     sequential DCTs, those bytes (8-bit Ss, 8-bit Se, 4-bit Ah, 4-bit Al)
//     should be 0x00, 0x3f, 0x00<<4 | 0x00.
var sosHeader = []byte{
	0xff, sosMarker, 0x00, 0x0c, 0x03, 0x01, 0x00, 0x02,
	0x11, 0x03, 0x11, 0x00, 0x3f, 0x00,
}

func (w *bitWriter) writeSOS() {
	w.write(sosHeader)
}
