package receipt

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var storage *LocalStorage

	BeforeEach(func() {
		var err error
		storage, err = NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should save and retrieve a file", func() {
		name, err := storage.Save("ebon-1.pdf", []byte("%PDF-1.4 test"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("ebon-1.pdf"))

		data, err := storage.Get(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("%PDF-1.4 test")))
	})

	It("should save under the sanitized name", func() {
		name, err := storage.Save("REWE eBon (Kasse #2)!.pdf", []byte("data"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("REWE eBon Kasse 2.pdf"))

		_, err = storage.Get(name)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should delete a file", func() {
		name, err := storage.Save("ebon-1.pdf", []byte("data"))
		Expect(err).NotTo(HaveOccurred())

		Expect(storage.Delete(name)).To(Succeed())
		_, err = storage.Get(name)
		Expect(err).To(HaveOccurred())
	})

	It("should error when the file does not exist", func() {
		_, err := storage.Get("missing.pdf")
		Expect(err).To(HaveOccurred())
	})

	It("should create the base directory", func() {
		base := filepath.Join(GinkgoT().TempDir(), "nested", "receipts")
		_, err := NewLocalStorage(base)
		Expect(err).NotTo(HaveOccurred())

		info, err := os.Stat(base)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})
})

var _ = Describe("SanitizeFilename", func() {
	It("should strip special characters", func() {
		Expect(SanitizeFilename("eBon: 14.03.2024 / Kasse 2?.pdf")).To(Equal("eBon 14.03.2024 Kasse 2.pdf"))
	})

	It("should collapse repeated whitespace", func() {
		Expect(SanitizeFilename("my   receipt\tfile.pdf")).To(Equal("my receipt file.pdf"))
	})

	It("should truncate long names but keep the extension", func() {
		long := strings.Repeat("a", 200) + ".pdf"
		clean := SanitizeFilename(long)
		Expect(clean).To(HaveLen(84))
		Expect(clean).To(HaveSuffix(".pdf"))
	})

	It("should fall back to a default name", func() {
		Expect(SanitizeFilename("???.pdf")).To(Equal("receipt.pdf"))
	})

	It("should drop any directory prefix", func() {
		Expect(SanitizeFilename("/tmp/attachments/ebon.pdf")).To(Equal("ebon.pdf"))
	})
})
