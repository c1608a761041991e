package script

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"io"

	"github.com/jmespath/go-jmespath"

	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/value"
)

// registerStdlib installs FiddlerScript's fixed built-in library. The set is
// intentionally small and closed: scripts cannot extend it, only the host
// (via RegisterBuiltin) can add domain-specific functions on top.
func registerStdlib(it *Interpreter) {
	it.RegisterBuiltin("int", builtinInt)
	it.RegisterBuiltin("float", builtinFloat)
	it.RegisterBuiltin("str", builtinStr)
	it.RegisterBuiltin("bytes", builtinBytes)
	it.RegisterBuiltin("bytes_to_string", builtinBytesToString)
	it.RegisterBuiltin("len", builtinLen)

	it.RegisterBuiltin("get", builtinGet)
	it.RegisterBuiltin("set", builtinSet)
	it.RegisterBuiltin("push", builtinPush)
	it.RegisterBuiltin("delete", builtinDelete)
	it.RegisterBuiltin("keys", builtinKeys)
	it.RegisterBuiltin("has", builtinHas)

	it.RegisterBuiltin("parse_json", builtinParseJSON)
	it.RegisterBuiltin("to_json", builtinToJSON)
	it.RegisterBuiltin("jmespath", builtinJMESPath)

	it.RegisterBuiltin("base64_encode", builtinBase64Encode)
	it.RegisterBuiltin("base64_decode", builtinBase64Decode)
	it.RegisterBuiltin("gzip_compress", builtinGzipCompress)
	it.RegisterBuiltin("gzip_decompress", builtinGzipDecompress)
	it.RegisterBuiltin("zlib_compress", builtinZlibCompress)
	it.RegisterBuiltin("zlib_decompress", builtinZlibDecompress)
	it.RegisterBuiltin("deflate_compress", builtinDeflateCompress)
	it.RegisterBuiltin("deflate_decompress", builtinDeflateDecompress)
}

func argErr(want int, got int) error {
	return ferrors.Runtime(ferrors.RuntimeInvalidArgument, "expected %d argument(s), got %d", want, got)
}

func builtinInt(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	i, err := args[0].ToInt()
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "%s", err.Error())
	}
	return value.Int(i), nil
}

func builtinFloat(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	f, err := args[0].ToFloat()
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "%s", err.Error())
	}
	return value.Flt(f), nil
}

func builtinStr(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	return value.Str(args[0].String()), nil
}

func builtinBytes(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	return value.BytesVal(args[0].ToBytes()), nil
}

func builtinBytesToString(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	if args[0].Kind() != value.KindBytes {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "bytes_to_string requires bytes, got %s", args[0].TypeName())
	}
	return value.Str(string(args[0].Bytes())), nil
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	switch args[0].Kind() {
	case value.KindString:
		return value.Int(int64(len(args[0].Str()))), nil
	case value.KindBytes:
		return value.Int(int64(len(args[0].Bytes()))), nil
	case value.KindArray:
		return value.Int(int64(len(args[0].Array()))), nil
	case value.KindDict:
		return value.Int(int64(args[0].Dict().Len())), nil
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "len() requires a collection or string, got %s", args[0].TypeName())
}

// get(collection, key) reads an array index or dict key; missing/out-of-range
// returns Null rather than erroring, matching index/member semantics.
func builtinGet(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(2, len(args))
	}
	coll, key := args[0], args[1]
	switch coll.Kind() {
	case value.KindArray:
		i, err := key.ToInt()
		if err != nil {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "array index must be an integer")
		}
		arr := coll.Array()
		if i < 0 || int(i) >= len(arr) {
			return value.Null(), nil
		}
		return arr[i], nil
	case value.KindDict:
		if key.Kind() != value.KindString {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "dict key must be a string")
		}
		return coll.Dict().Get(key.Str()), nil
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "get() requires an array or dict, got %s", coll.TypeName())
}

// set(collection, key, v) returns a NEW collection with key bound to v;
// collections are value types, so this never mutates its argument.
func builtinSet(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Null(), argErr(3, len(args))
	}
	coll, key, v := args[0], args[1], args[2]
	switch coll.Kind() {
	case value.KindArray:
		i, err := key.ToInt()
		if err != nil {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "array index must be an integer")
		}
		arr := append([]value.Value(nil), coll.Array()...)
		if i < 0 || int(i) >= len(arr) {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeIndexOutOfRange, "index %d out of range for array of length %d", i, len(arr))
		}
		arr[i] = v
		return value.Arr(arr), nil
	case value.KindDict:
		if key.Kind() != value.KindString {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "dict key must be a string")
		}
		return value.DictVal(coll.Dict().Set(key.Str(), v)), nil
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "set() requires an array or dict, got %s", coll.TypeName())
}

// push(array, v) returns a new array with v appended.
func builtinPush(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(2, len(args))
	}
	coll, v := args[0], args[1]
	if coll.Kind() != value.KindArray {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "push() requires an array, got %s", coll.TypeName())
	}
	arr := append([]value.Value(nil), coll.Array()...)
	arr = append(arr, v)
	return value.Arr(arr), nil
}

// delete(dict, key) returns a new dict without key; delete(array, idx)
// returns a new array without the element at idx.
func builtinDelete(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(2, len(args))
	}
	coll, key := args[0], args[1]
	switch coll.Kind() {
	case value.KindDict:
		if key.Kind() != value.KindString {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "dict key must be a string")
		}
		return value.DictVal(coll.Dict().Delete(key.Str())), nil
	case value.KindArray:
		i, err := key.ToInt()
		if err != nil {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "array index must be an integer")
		}
		arr := coll.Array()
		if i < 0 || int(i) >= len(arr) {
			return value.Null(), ferrors.Runtime(ferrors.RuntimeIndexOutOfRange, "index %d out of range for array of length %d", i, len(arr))
		}
		out := make([]value.Value, 0, len(arr)-1)
		out = append(out, arr[:i]...)
		out = append(out, arr[i+1:]...)
		return value.Arr(out), nil
	}
	return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "delete() requires an array or dict, got %s", coll.TypeName())
}

func builtinKeys(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	if args[0].Kind() != value.KindDict {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "keys() requires a dict, got %s", args[0].TypeName())
	}
	ks := args[0].Dict().Keys()
	vs := make([]value.Value, len(ks))
	for i, k := range ks {
		vs[i] = value.Str(k)
	}
	return value.Arr(vs), nil
}

func builtinHas(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(2, len(args))
	}
	if args[0].Kind() != value.KindDict || args[1].Kind() != value.KindString {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "has() requires (dict, string)")
	}
	return value.Bool(args[0].Dict().Has(args[1].Str())), nil
}

func builtinParseJSON(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	var raw []byte
	switch args[0].Kind() {
	case value.KindBytes:
		raw = args[0].Bytes()
	case value.KindString:
		raw = []byte(args[0].Str())
	default:
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "parse_json() requires bytes or string, got %s", args[0].TypeName())
	}
	v, err := value.ParseJSONBytes(raw)
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "parse_json: %s", err.Error())
	}
	return v, nil
}

func builtinToJSON(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(1, len(args))
	}
	b, err := value.ToJSON(args[0])
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "to_json: %s", err.Error())
	}
	return value.BytesVal(b), nil
}

// jmespath(v, expr) evaluates a JMESPath expression against v; compilation
// is uncached here since the interpreter itself is already reconstructed or
// reused per compiled program by the caller (see fiddlerscript processor,
// which caches the *Program, not individual jmespath.Expression values).
func builtinJMESPath(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(2, len(args))
	}
	if args[1].Kind() != value.KindString {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "jmespath() expression must be a string")
	}
	expr, err := jmespath.Compile(args[1].Str())
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "jmespath: %s", err.Error())
	}
	result, err := expr.Search(value.ToAny(args[0]))
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "jmespath: %s", err.Error())
	}
	return value.FromAny(result), nil
}

func asBytesArg(args []value.Value, i int) ([]byte, error) {
	if i >= len(args) {
		return nil, argErr(i+1, len(args))
	}
	switch args[i].Kind() {
	case value.KindBytes:
		return args[i].Bytes(), nil
	case value.KindString:
		return []byte(args[i].Str()), nil
	}
	return nil, ferrors.Runtime(ferrors.RuntimeTypeMismatch, "expected bytes or string, got %s", args[i].TypeName())
}

func builtinBase64Encode(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Str(base64.StdEncoding.EncodeToString(b)), nil
}

func builtinBase64Decode(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeTypeMismatch, "base64_decode() requires a string")
	}
	out, err := base64.StdEncoding.DecodeString(args[0].Str())
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "base64_decode: %s", err.Error())
	}
	return value.BytesVal(out), nil
}

func builtinGzipCompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(b); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "gzip_compress: %s", err.Error())
	}
	if err := gw.Close(); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "gzip_compress: %s", err.Error())
	}
	return value.BytesVal(buf.Bytes()), nil
}

func builtinGzipDecompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	gr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "gzip_decompress: %s", err.Error())
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "gzip_decompress: %s", err.Error())
	}
	return value.BytesVal(out), nil
}

func builtinZlibCompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "zlib_compress: %s", err.Error())
	}
	if err := zw.Close(); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "zlib_compress: %s", err.Error())
	}
	return value.BytesVal(buf.Bytes()), nil
}

func builtinZlibDecompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "zlib_decompress: %s", err.Error())
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "zlib_decompress: %s", err.Error())
	}
	return value.BytesVal(out), nil
}

func builtinDeflateCompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "deflate_compress: %s", err.Error())
	}
	if _, err := fw.Write(b); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "deflate_compress: %s", err.Error())
	}
	if err := fw.Close(); err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "deflate_compress: %s", err.Error())
	}
	return value.BytesVal(buf.Bytes()), nil
}

func builtinDeflateDecompress(args []value.Value) (value.Value, error) {
	b, err := asBytesArg(args, 0)
	if err != nil {
		return value.Null(), err
	}
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return value.Null(), ferrors.Runtime(ferrors.RuntimeInvalidArgument, "deflate_decompress: %s", err.Error())
	}
	return value.BytesVal(out), nil
}
