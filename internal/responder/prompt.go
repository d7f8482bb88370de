package responder

import (
	"fmt"
	"strings"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

const noProducts = "Không có sản phẩm cụ thể."

// formatItems renders the numbered product list handed to the model.
func formatItems(items []domain.CatalogItem) string {
	if len(items) == 0 {
		return noProducts
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s – Giá: %s", i+1, it.Link(), it.PriceLabel())
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the store-advisor prompt for one customer message.
func BuildPrompt(message string, items []domain.CatalogItem) string {
	var b strings.Builder

	b.WriteString("Bạn là tư vấn viên Chevai Fashion - cửa hàng thời trang. Giúp khách chọn quần áo phù hợp.\n\n")
	fmt.Fprintf(&b, "**KHÁCH YÊU CẦU**: %q\n", message)
	b.WriteString("**SẢN PHẨM CÓ SẴN TRONG KHO**: \n")
	b.WriteString(formatItems(items))
	b.WriteString("\n")
	b.WriteString(`**QUY TẮC BẮT BUỘC**:
- Trả lời ngắn gọn (100-150 từ)
- Thân thiện, nhiệt tình, chuyên nghiệp
- Dùng ngôn ngữ tự nhiên, không gượng gạo
- Đa dạng mẫu câu, không lặp lại
- Hãy xưng hô với khách là "bạn"
- Nếu khách hỏi sản phẩm có size gì thì cứ trả lời có đủ size S, M, L, XL
- Tự động thích nghi và trả lời nếu nó nằm ngoài việc tư vấn quần áo
- Nếu khách hỏi về chính sách đổi trả thì hãy trả lời rằng "Chevai Fashion hỗ trợ đổi trả trong vòng 7 ngày nếu sản phẩm còn nguyên tem mác."
- Nếu khách hỏi về thời gian giao hàng thì hãy trả lời rằng "Thời gian giao hàng dự kiến từ 3-5 ngày làm việc."
- Không được nói đưa ảnh hay cho xem ảnh
- Không được đưa [Sản phẩm không có sẵn] ra đoạn chat với khách
**TUYỆT ĐỐI TUÂN THỦ**:
1. CHỈ được giới thiệu sản phẩm CÓ TRONG DANH SÁCH TRÊN
2. KHÔNG được tự tạo tên sản phẩm hay ID bất kỳ
3. LUÔN dùng đúng ID từ danh sách, không được sửa đổi
4. Nếu không có sản phẩm phù hợp trong danh sách → nói "Hiện tại chưa có sản phẩm phù hợp"
5. Luôn dùng cú pháp Markdown [Tên sản phẩm](/product/ID) để chèn link.
6. Tuyệt đối không ghi "(/product/ID)" hoặc "Link sản phẩm:" thô ra ngoài.
7. Không hiển thị ID ngoài text.
`)
	if wantsSetHint(message) {
		b.WriteString("\n🎯 Tư vấn SET từ danh sách - 1 áo + 1 quần có sẵn.\n")
	}
	b.WriteString("Trả lời (chỉ dùng sản phẩm có trong danh sách):")
	return b.String()
}
