package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/source.html", want: "owner/source.html"},
		{name: "simple prefix", prefix: "root", key: "owner/source.html", want: "root/owner/source.html"},
		{name: "prefix trailing slash", prefix: "root/", key: "owner/source.html", want: "root/owner/source.html"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/owner/source.html", want: "root/owner/source.html"},
		{name: "nested prefix", prefix: "root/sub", key: "owner/source.html", want: "root/sub/owner/source.html"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestApplyEncryption(t *testing.T) {
	t.Parallel()

	withKMS := &Store{kmsKeyID: "key-1"}
	input := &s3.PutObjectInput{}
	withKMS.applyEncryption(input)
	if input.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected aws:kms, got %q", input.ServerSideEncryption)
	}
	if input.SSEKMSKeyId == nil || *input.SSEKMSKeyId != "key-1" {
		t.Fatalf("expected kms key id to be set")
	}

	plain := &Store{}
	input = &s3.PutObjectInput{}
	plain.applyEncryption(input)
	if input.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256, got %q", input.ServerSideEncryption)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), "us-east-1", "", "", ""); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
