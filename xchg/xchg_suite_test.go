package xchg_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestXchg(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
