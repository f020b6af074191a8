package authority

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/mbd888/rugscan/internal/capability"
)

type fakeReader struct {
	code map[string][]byte
	err  error
}

func (f *fakeReader) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.code[address], nil
}

type fakeCaller struct {
	result   []byte
	err      error
	lastData []byte
}

func (f *fakeCaller) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestClassifier(custodians map[string]bool, reader *fakeReader, caller *fakeCaller) *Classifier {
	if reader == nil {
		reader = &fakeReader{}
	}
	if caller == nil {
		caller = &fakeCaller{}
	}
	return NewClassifier(custodians, reader, caller, nil)
}

const (
	testToken = "0x1111111111111111111111111111111111111111"
	testOwner = "0x2222222222222222222222222222222222222222"
)

func TestClassifyKnownCustodian(t *testing.T) {
	c := newTestClassifier(map[string]bool{testToken: true}, nil, nil)

	ctrl := c.Classify(context.Background(), testToken, testOwner, "0x6080")
	if ctrl.Type != ControllerKnownEntity || ctrl.Confidence != 0.95 {
		t.Errorf("custodian token: got %+v", ctrl)
	}
}

func TestClassifyNoOwner(t *testing.T) {
	c := newTestClassifier(nil, nil, nil)

	ctrl := c.Classify(context.Background(), testToken, "", "0x6080")
	if ctrl.Type != ControllerUnknown || ctrl.Confidence != 0.0 {
		t.Errorf("no owner: got %+v", ctrl)
	}
}

func TestClassifyRenouncedOwners(t *testing.T) {
	c := newTestClassifier(nil, nil, nil)

	for _, owner := range []string{ZeroAddress, BurnAddress, "0x000000000000000000000000000000000000dEaD"} {
		ctrl := c.Classify(context.Background(), testToken, owner, "0x6080")
		if ctrl.Type != ControllerRenounced {
			t.Errorf("owner %s: type = %s, want renounced", owner, ctrl.Type)
		}
		// The dual-signal override replaces the storage-read confidence.
		if ctrl.Confidence != 0.9 {
			t.Errorf("owner %s: confidence = %v, want 0.9", owner, ctrl.Confidence)
		}
	}
}

func TestClassifyOwnerCodeShapes(t *testing.T) {
	shortProxy, _ := hex.DecodeString("363d3d373d3d3d363d73f45af4") // contains DELEGATECALL byte
	longContract := bytes.Repeat([]byte{0x60, 0x80}, 200)
	longWithDelegate := append(bytes.Repeat([]byte{0x60, 0x80}, 150), 0xf4)

	cases := []struct {
		name       string
		code       []byte
		wantType   ControllerType
		wantConf   float64
	}{
		{"no code is an EOA", nil, ControllerSingleEOA, 0.95},
		{"short proxy with delegatecall", shortProxy, ControllerMultisig, 0.75},
		{"long contract with delegatecall", longWithDelegate, ControllerMultisig, 0.65},
		{"long contract without delegatecall", longContract, ControllerDAOTimelock, 0.60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &fakeReader{code: map[string][]byte{testOwner: tc.code}}
			c := newTestClassifier(nil, reader, nil)

			ctrl := c.Classify(context.Background(), testToken, testOwner, "0x6080")
			if ctrl.Type != tc.wantType || ctrl.Confidence != tc.wantConf {
				t.Errorf("got %+v, want %s/%v", ctrl, tc.wantType, tc.wantConf)
			}
		})
	}
}

func TestClassifyCodeInspectionFailure(t *testing.T) {
	reader := &fakeReader{err: errors.New("rpc timeout")}
	c := newTestClassifier(nil, reader, nil)

	ctrl := c.Classify(context.Background(), testToken, testOwner, "0x6080")
	if ctrl.Type != ControllerUnknown || ctrl.Confidence != 0.0 {
		t.Errorf("rpc failure should degrade to unknown: got %+v", ctrl)
	}
}

func TestClassifyRenouncementFromBytecode(t *testing.T) {
	c := newTestClassifier(nil, nil, nil)

	// No owner resolvable, but renounceOwnership() selector in the
	// token's own bytecode corroborates renouncement.
	code := "0x6080" + capability.RenounceOwnershipSelector + "00"
	ctrl := c.Classify(context.Background(), testToken, "", code)
	if ctrl.Type != ControllerRenounced || ctrl.Confidence != 0.9 {
		t.Errorf("bytecode renouncement: got %+v", ctrl)
	}

	// Without the selector the same inputs stay unknown.
	ctrl = c.Classify(context.Background(), testToken, "", "0x6080")
	if ctrl.Type != ControllerUnknown {
		t.Errorf("no renounce selector: got %+v", ctrl)
	}
}

func TestResolveOwnerRawCall(t *testing.T) {
	result := make([]byte, 32)
	copy(result[12:], mustHex(t, strings.TrimPrefix(testOwner, "0x")))
	caller := &fakeCaller{result: result}
	c := newTestClassifier(nil, nil, caller)

	owner := c.ResolveOwner(context.Background(), testToken, nil)
	if owner != testOwner {
		t.Errorf("owner = %q, want %q", owner, testOwner)
	}
	if got := hex.EncodeToString(caller.lastData); got != "8da5cb5b" {
		t.Errorf("call data = %s, want the owner() selector", got)
	}
}

func TestResolveOwnerZeroResult(t *testing.T) {
	caller := &fakeCaller{result: make([]byte, 32)}
	c := newTestClassifier(nil, nil, caller)

	if owner := c.ResolveOwner(context.Background(), testToken, nil); owner != "" {
		t.Errorf("all-zero result should mean no owner, got %q", owner)
	}
}

func TestResolveOwnerFailureIsNonFatal(t *testing.T) {
	caller := &fakeCaller{err: errors.New("execution reverted")}
	c := newTestClassifier(nil, nil, caller)

	if owner := c.ResolveOwner(context.Background(), testToken, nil); owner != "" {
		t.Errorf("call failure should yield no owner, got %q", owner)
	}
}

func TestResolveOwnerViaABIAccessor(t *testing.T) {
	result := make([]byte, 32)
	copy(result[12:], mustHex(t, strings.TrimPrefix(testOwner, "0x")))
	caller := &fakeCaller{result: result}
	c := newTestClassifier(nil, nil, caller)

	iface := []capability.ABIEntry{
		{Type: "function", Name: "getOwner", Inputs: nil},
	}
	owner := c.ResolveOwner(context.Background(), testToken, iface)
	if owner != testOwner {
		t.Errorf("owner = %q, want %q", owner, testOwner)
	}
	// keccak256("getOwner()")[:4], not the standard owner() selector.
	if got := hex.EncodeToString(caller.lastData); got == "8da5cb5b" {
		t.Errorf("expected the getOwner() selector, got the owner() fallback")
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}
