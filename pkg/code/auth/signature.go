package auth

import (
	"context"
	"encoding/base64"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/code-payments/code-distributor/pkg/code/common"
	"github.com/code-payments/code-distributor/pkg/metrics"
)

const (
	metricsStructName = "auth.signature_verifier"
)

// Message is a request whose canonical byte encoding is signed by the party
// making the request. The encoding must exclude the signature itself.
type Message interface {
	SigningBytes() ([]byte, error)
}

// SignatureVerifier verifies request messages signed by a party's account.
type SignatureVerifier struct {
	log *logrus.Entry
}

func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{
		log: logrus.StandardLogger().WithField("type", "auth/signature_verifier"),
	}
}

// Authenticate authenticates that a request message is signed by the signer
// account public key.
func (v *SignatureVerifier) Authenticate(ctx context.Context, signer *common.Account, message Message, signature []byte) error {
	defer metrics.TraceMethodCall(ctx, metricsStructName, "Authenticate").End()

	log := v.log.WithFields(logrus.Fields{
		"method": "Authenticate",
		"signer": signer.PublicKey().ToBase58(),
	})

	messageBytes, err := message.SigningBytes()
	if err != nil {
		log.WithError(err).Warn("failure encoding message")
		return status.Error(codes.Internal, "")
	}

	if !signer.Verify(messageBytes, signature) {
		log.WithFields(logrus.Fields{
			"message":   base64.StdEncoding.EncodeToString(messageBytes),
			"signature": base58.Encode(signature),
		}).Info("message is not signature verified")
		return status.Error(codes.Unauthenticated, "")
	}
	return nil
}
