package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// Catalog is the part of the products API seeding needs.
type Catalog interface {
	All(ctx context.Context) ([]domain.Product, error)
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
}

// Products is the demo fire-safety catalog.
var Products = []domain.ProductInput{
	{
		Name:        "Yangın Söndürücü 1kg ABC",
		Category:    "Söndürücüler",
		Price:       decimal.NewFromInt(150),
		Image:       "/fire-extinguisher-red.jpg",
		Images:      []string{"/fire-extinguisher-red.jpg", "/fire-extinguisher-red.jpg", "/fire-extinguisher-red.jpg"},
		Description: "Evler ve ofisler için ideal, taşınabilir 1kg ABC tipi yangın söndürücü",
		Specs:       []string{"1kg kapasite", "ABC tipi", "Kolay kullanım", "CE Sertifikalı"},
		InStock:     true,
	},
	{
		Name:        "Duman Detektörü Akıllı",
		Category:    "Alarm Sistemleri",
		Price:       decimal.NewFromInt(280),
		Image:       "/smart-smoke-detector.png",
		Images:      []string{"/smart-smoke-detector.png", "/smart-smoke-detector.png"},
		Description: "WiFi bağlantılı, akıllı telefon uygulaması ile kontrol edilebilir duman detektörü",
		Specs:       []string{"WiFi Bağlantı", "Akıllı Bildirim", "10 yıl Pil Ömrü", "CE Sertifikalı"},
		InStock:     true,
	},
	{
		Name:        "Acil Çıkış Işığı LED",
		Category:    "Aydınlatma",
		Price:       decimal.NewFromInt(95),
		Image:       "/emergency-exit-light-led.jpg",
		Images:      []string{"/emergency-exit-light-led.jpg"},
		Description: "Yüksek parlaklıklı LED acil çıkış işığı, enerji tasarrufu sağlar",
		Specs:       []string{"LED Teknoloji", "Otomatik Şarj", "2-4 saat Çalışma", "IP65 Su Geçirmez"},
		InStock:     true,
	},
	{
		Name:        "Yangın Hortumu 20m",
		Category:    "Hortumlar",
		Price:       decimal.NewFromInt(320),
		Image:       "/fire-hose-20-meters.jpg",
		Images:      []string{"/fire-hose-20-meters.jpg", "/fire-hose-20-meters.jpg"},
		Description: "Dayanıklı, parlak kırmızı renkli 20 metre yangın hortumu",
		Specs:       []string{"20 metre", "19mm Çap", "Dayanıklı Kumaş", "Pirinç Fittings"},
		InStock:     true,
	},
	{
		Name:        "Yangın Dolabı Metal",
		Category:    "Dolap ve Aksesuarlar",
		Price:       decimal.NewFromInt(450),
		Image:       "/fire-cabinet-metal.jpg",
		Images:      []string{"/fire-cabinet-metal.jpg", "/fire-cabinet-metal.jpg"},
		Description: "Metal konstrüksiyonlu, yangın söndürücü ve ekipmanları saklamak için",
		Specs:       []string{"Çelik Konstrüksiyon", "Cam Kapı", "Duvar Montajlı", "500x400x200mm"},
		InStock:     true,
	},
	{
		Name:        "Yangın Güvenlik İşareti",
		Category:    "İşaretler",
		Price:       decimal.NewFromInt(35),
		Image:       "/fire-safety-sign.jpg",
		Images:      []string{"/fire-safety-sign.jpg"},
		Description: "Fosforlu yangın söndürücü konumu işareti, kolay görülür",
		Specs:       []string{"Fosforlu", "210x210mm", "Yapışkanlı", "Gece Görünürlüğü"},
		InStock:     true,
	},
}

// Apply pushes the demo catalog. It is idempotent by product name: products
// already present are left untouched. It returns how many were created.
func Apply(ctx context.Context, catalog Catalog, logger *zap.Logger) (int, error) {
	logger = logging.OrNop(logger)
	existing, err := catalog.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	created := 0
	for _, p := range Products {
		if have[p.Name] {
			logger.Debug("seed product exists", zap.String("name", p.Name))
			continue
		}
		if _, err := catalog.Create(ctx, p); err != nil {
			return created, fmt.Errorf("create product %s: %w", p.Name, err)
		}
		created++
	}
	return created, nil
}
