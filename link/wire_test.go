package link

import "testing"

func TestAcceptSeqFirstIsAlwaysNew(t *testing.T) {
	l := &Link{}
	if !l.acceptSeq(5) {
		t.Fatalf("first-ever sequence number must be accepted")
	}
}

func TestAcceptSeqMonotonicAdvance(t *testing.T) {
	l := &Link{}
	for seq := uint64(0); seq < 200; seq++ {
		if !l.acceptSeq(seq) {
			t.Fatalf("strictly increasing seq %d unexpectedly rejected", seq)
		}
	}
}

func TestAcceptSeqRejectsExactReplay(t *testing.T) {
	l := &Link{}
	l.acceptSeq(10)
	if l.acceptSeq(10) {
		t.Fatalf("replaying seq 10 must be rejected")
	}
}

func TestAcceptSeqAcceptsInWindowReorder(t *testing.T) {
	l := &Link{}
	l.acceptSeq(100)
	if !l.acceptSeq(95) {
		t.Fatalf("a reordered-but-unseen seq within the 64-wide window must be accepted")
	}
	if l.acceptSeq(95) {
		t.Fatalf("re-accepting the same reordered seq must be rejected")
	}
}

func TestAcceptSeqRejectsFarBehindWindow(t *testing.T) {
	l := &Link{}
	l.acceptSeq(1000)
	if l.acceptSeq(900) {
		t.Fatalf("a seq 100 behind the 64-wide window must be rejected outright")
	}
}

func TestEncodeDecodePlaintextRoundTrip(t *testing.T) {
	body := []byte("payload body")
	plaintext := encodePlaintext(42, linkCtrlPayload, body)
	seq, ctrl, gotBody, err := decodePlaintext(plaintext)
	if err != nil {
		t.Fatalf("decodePlaintext: %v", err)
	}
	if seq != 42 || ctrl != linkCtrlPayload || string(gotBody) != string(body) {
		t.Fatalf("round trip mismatch: seq=%d ctrl=%d body=%q", seq, ctrl, gotBody)
	}
}

func TestDecodePlaintextRejectsShortInput(t *testing.T) {
	if _, _, _, err := decodePlaintext([]byte{1, 2, 3}); err != ErrMalformed {
		t.Fatalf("got err %v, want ErrMalformed", err)
	}
}
