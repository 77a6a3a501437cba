package biff

// funcDef is a built-in worksheet function: name and argument count bounds.
type funcDef struct {
	Name    string
	MinArgs int
	MaxArgs int
}

// funcDefs maps tFunc and tFuncVar indices to built-in functions.
var funcDefs = map[int]funcDef{
	0:   {"COUNT", 0, 30},
	1:   {"IF", 2, 3},
	2:   {"ISNA", 1, 1},
	3:   {"ISERROR", 1, 1},
	4:   {"SUM", 0, 30},
	5:   {"AVERAGE", 1, 30},
	6:   {"MIN", 1, 30},
	7:   {"MAX", 1, 30},
	8:   {"ROW", 0, 1},
	9:   {"COLUMN", 0, 1},
	10:  {"NA", 0, 0},
	11:  {"NPV", 2, 30},
	12:  {"STDEV", 1, 30},
	13:  {"DOLLAR", 1, 2},
	14:  {"FIXED", 2, 3},
	15:  {"SIN", 1, 1},
	16:  {"COS", 1, 1},
	17:  {"TAN", 1, 1},
	18:  {"ATAN", 1, 1},
	19:  {"PI", 0, 0},
	20:  {"SQRT", 1, 1},
	21:  {"EXP", 1, 1},
	22:  {"LN", 1, 1},
	23:  {"LOG10", 1, 1},
	24:  {"ABS", 1, 1},
	25:  {"INT", 1, 1},
	26:  {"SIGN", 1, 1},
	27:  {"ROUND", 2, 2},
	28:  {"LOOKUP", 2, 3},
	29:  {"INDEX", 2, 4},
	30:  {"REPT", 2, 2},
	31:  {"MID", 3, 3},
	32:  {"LEN", 1, 1},
	33:  {"VALUE", 1, 1},
	34:  {"TRUE", 0, 0},
	35:  {"FALSE", 0, 0},
	36:  {"AND", 1, 30},
	37:  {"OR", 1, 30},
	38:  {"NOT", 1, 1},
	39:  {"MOD", 2, 2},
	40:  {"DCOUNT", 3, 3},
	41:  {"DSUM", 3, 3},
	42:  {"DAVERAGE", 3, 3},
	43:  {"DMIN", 3, 3},
	44:  {"DMAX", 3, 3},
	45:  {"DSTDEV", 3, 3},
	46:  {"VAR", 1, 30},
	47:  {"DVAR", 3, 3},
	48:  {"TEXT", 2, 2},
	49:  {"LINEST", 1, 4},
	50:  {"TREND", 1, 4},
	51:  {"LOGEST", 1, 4},
	52:  {"GROWTH", 1, 4},
	57:  {"TRANSPOSE", 1, 1},
	61:  {"RAND", 0, 0},
	62:  {"MATCH", 2, 3},
	63:  {"DATE", 3, 3},
	64:  {"TIME", 3, 3},
	65:  {"DAY", 1, 1},
	66:  {"MONTH", 1, 1},
	67:  {"YEAR", 1, 1},
	68:  {"WEEKDAY", 1, 2},
	69:  {"HOUR", 1, 1},
	70:  {"MINUTE", 1, 1},
	71:  {"SECOND", 1, 1},
	72:  {"NOW", 0, 0},
	73:  {"AREAS", 1, 1},
	74:  {"ROWS", 1, 1},
	75:  {"COLUMNS", 1, 1},
	76:  {"OFFSET", 3, 5},
	77:  {"SEARCH", 2, 3},
	78:  {"TRANSPOSE", 1, 1},
	79:  {"TYPE", 1, 1},
	82:  {"ATAN2", 2, 2},
	83:  {"ASIN", 1, 1},
	84:  {"ACOS", 1, 1},
	85:  {"CHOOSE", 2, 30},
	86:  {"HLOOKUP", 3, 4},
	87:  {"VLOOKUP", 3, 4},
	88:  {"ISREF", 1, 1},
	89:  {"LOG", 1, 2},
	97:  {"CHAR", 1, 1},
	98:  {"LOWER", 1, 1},
	99:  {"UPPER", 1, 1},
	100: {"PROPER", 1, 1},
	101: {"LEFT", 1, 2},
	102: {"RIGHT", 1, 2},
	103: {"EXACT", 2, 2},
	104: {"TRIM", 1, 1},
	105: {"REPLACE", 4, 4},
	106: {"SUBSTITUTE", 3, 4},
	107: {"CODE", 1, 1},
	109: {"FIND", 2, 3},
	111: {"ISERR", 1, 1},
	112: {"ISTEXT", 1, 1},
	113: {"ISNUMBER", 1, 1},
	114: {"ISBLANK", 1, 1},
	115: {"T", 1, 1},
	116: {"N", 1, 1},
	117: {"DATEVALUE", 1, 1},
	118: {"TIMEVALUE", 1, 1},
	119: {"SLN", 3, 3},
	120: {"SYD", 4, 4},
	121: {"DDB", 4, 5},
	124: {"INDIRECT", 1, 2},
	125: {"CALLER", 0, 0},
	126: {"CLEAN", 1, 1},
	127: {"MDETERM", 1, 1},
	128: {"MINVERSE", 1, 1},
	129: {"MMULT", 2, 2},
	130: {"IPMT", 4, 6},
	131: {"PPMT", 4, 6},
	132: {"COUNTA", 0, 30},
	133: {"PRODUCT", 0, 30},
	134: {"FACT", 1, 1},
	135: {"DPRODUCT", 3, 3},
	136: {"ISNONTEXT", 1, 1},
	137: {"STDEVP", 1, 30},
	138: {"VARP", 1, 30},
	139: {"DSTDEVP", 3, 3},
	140: {"DVARP", 3, 3},
	141: {"TRUNC", 1, 2},
	142: {"ISLOGICAL", 1, 1},
	143: {"DCOUNTA", 3, 3},
	144: {"FINDB", 2, 3},
	145: {"SEARCHB", 2, 3},
	146: {"REPLACEB", 4, 4},
	147: {"LEFTB", 1, 2},
	148: {"RIGHTB", 1, 2},
	149: {"MIDB", 3, 3},
	150: {"LENB", 1, 1},
	151: {"ROUNDUP", 2, 2},
	152: {"ROUNDDOWN", 2, 2},
	153: {"ASC", 1, 1},
	154: {"DBCS", 1, 1},
	155: {"RANK", 2, 3},
	156: {"ADDRESS", 2, 5},
	157: {"DAYS360", 2, 2},
	158: {"TODAY", 0, 0},
	159: {"VDB", 5, 7},
	160: {"MEDIAN", 1, 30},
	161: {"SUMPRODUCT", 1, 30},
	162: {"SINH", 1, 1},
	163: {"COSH", 1, 1},
	164: {"TANH", 1, 1},
	165: {"ASINH", 1, 1},
	166: {"ACOSH", 1, 1},
	167: {"ATANH", 1, 1},
	168: {"DGET", 3, 3},
	169: {"INFO", 1, 1},
	183: {"FREQUENCY", 2, 2},
	184: {"ERROR.TYPE", 1, 1},
	185: {"REGISTER.ID", 2, 3},
	186: {"AVEDEV", 1, 30},
	187: {"BETADIST", 3, 5},
	188: {"GAMMALN", 1, 1},
	189: {"BETAINV", 3, 5},
	190: {"BINOMDIST", 4, 4},
	191: {"CHIDIST", 2, 2},
	192: {"CHIINV", 2, 2},
	193: {"COMBIN", 2, 2},
	194: {"CONFIDENCE", 3, 3},
	195: {"CRITBINOM", 3, 3},
	196: {"EVEN", 1, 1},
	197: {"EXPONDIST", 3, 3},
	198: {"FDIST", 3, 3},
	199: {"FINV", 3, 3},
	200: {"FISHER", 1, 1},
	201: {"FISHERINV", 1, 1},
	202: {"FLOOR", 2, 2},
	203: {"GAMMADIST", 4, 4},
	204: {"GAMMAINV", 3, 3},
	205: {"CEILING", 2, 2},
	206: {"HYPGEOMDIST", 4, 4},
	207: {"LOGNORMDIST", 3, 3},
	208: {"LOGINV", 3, 3},
	209: {"NEGBINOMDIST", 3, 3},
	210: {"NORMDIST", 4, 4},
	211: {"NORMSDIST", 1, 1},
	212: {"NORMSINV", 1, 1},
	213: {"NORMINV", 3, 3},
	214: {"PEARSON", 2, 2},
	215: {"POISSON", 3, 3},
	216: {"TDIST", 3, 3},
	217: {"TINV", 2, 2},
	218: {"WEIBULL", 4, 4},
	219: {"SUMXMY2", 2, 2},
	220: {"SUMX2MY2", 2, 2},
	221: {"SUMX2PY2", 2, 2},
	222: {"CHITEST", 2, 2},
	223: {"CORREL", 2, 2},
	224: {"COVAR", 2, 2},
	225: {"FTEST", 2, 2},
	226: {"INTERCEPT", 2, 2},
	227: {"PEARSON", 2, 2},
	228: {"RSQ", 2, 2},
	229: {"STEYX", 2, 2},
	230: {"SLOPE", 2, 2},
	231: {"TTEST", 4, 4},
	232: {"PROB", 3, 4},
	233: {"DEVSQ", 1, 30},
	234: {"GEOMEAN", 1, 30},
	235: {"HARMEAN", 1, 30},
	236: {"SUMSQ", 1, 30},
	237: {"KURT", 1, 30},
	238: {"SKEW", 1, 30},
	239: {"ZTEST", 2, 3},
	240: {"LARGE", 2, 2},
	241: {"SMALL", 2, 2},
	242: {"QUARTILE", 2, 2},
	243: {"PERCENTILE", 2, 2},
	244: {"PERCENTRANK", 2, 3},
	245: {"MODE", 1, 30},
	246: {"TRIMMEAN", 2, 2},
	247: {"TINV2", 2, 2},
	252: {"CONCATENATE", 1, 30},
	253: {"POWER", 2, 2},
	254: {"RADIANS", 1, 1},
	255: {"DEGREES", 1, 1},
	256: {"SUBTOTAL", 2, 30},
	257: {"SUMIF", 2, 3},
	258: {"COUNTIF", 2, 2},
	259: {"COUNTBLANK", 1, 1},
	260: {"ISPMT", 4, 4},
	261: {"DATEDIF", 3, 3},
	262: {"DATESTRING", 1, 1},
	263: {"NUMBERSTRING", 2, 2},
	269: {"SQRTPI", 1, 1},
	270: {"RAND", 0, 0},
	271: {"NOW", 0, 0},
	272: {"TODAY", 0, 0},
	273: {"AREAS", 1, 1},
	274: {"ROWS", 1, 1},
	275: {"COLUMNS", 1, 1},
	276: {"OFFSET", 3, 5},
	277: {"SEARCH", 2, 3},
	278: {"TRANSPOSE", 1, 1},
	279: {"TYPE", 1, 1},
	285: {"CALLER", 0, 0},
	288: {"SERIESSUM", 4, 4},
	289: {"FACTDOUBLE", 1, 1},
	290: {"SQRTPI", 1, 1},
	291: {"RANDBETWEEN", 2, 2},
	292: {"PRODUCT", 0, 30},
	293: {"FACT", 1, 1},
	294: {"DPRODUCT", 3, 3},
	295: {"ISNONTEXT", 1, 1},
	296: {"STDEVP", 1, 30},
	297: {"VARP", 1, 30},
	298: {"DSTDEVP", 3, 3},
	299: {"DVARP", 3, 3},
	300: {"TRUNC", 1, 2},
	301: {"ISLOGICAL", 1, 1},
	302: {"DCOUNTA", 3, 3},
	303: {"FINDB", 2, 3},
	304: {"SEARCHB", 2, 3},
	305: {"REPLACEB", 4, 4},
	306: {"LEFTB", 1, 2},
	307: {"RIGHTB", 1, 2},
	308: {"MIDB", 3, 3},
	309: {"LENB", 1, 1},
	310: {"ROUNDUP", 2, 2},
	311: {"ROUNDDOWN", 2, 2},
	312: {"ASC", 1, 1},
	313: {"DBCS", 1, 1},
	314: {"RANK", 2, 3},
	315: {"ADDRESS", 2, 5},
	316: {"DAYS360", 2, 2},
	317: {"TODAY", 0, 0},
	318: {"VDB", 5, 7},
	319: {"MEDIAN", 1, 30},
	320: {"SUMPRODUCT", 1, 30},
	321: {"SINH", 1, 1},
	322: {"COSH", 1, 1},
	323: {"TANH", 1, 1},
	324: {"ASINH", 1, 1},
	325: {"ACOSH", 1, 1},
	326: {"ATANH", 1, 1},
	336: {"ISPMT", 4, 6},
	337: {"DATEDIF", 3, 3},
	338: {"DATESTRING", 1, 1},
	339: {"NUMBERSTRING", 2, 2},
	342: {"SUMSQ", 1, 30},
	343: {"SUMX2MY2", 2, 2},
	344: {"SUMX2PY2", 2, 2},
	345: {"SUMXMY2", 2, 2},
	346: {"FACTDOUBLE", 1, 1},
	347: {"SQRTPI", 1, 1},
	348: {"RANDBETWEEN", 2, 2},
	349: {"SERIESSUM", 4, 4},
	350: {"SUBTOTAL", 2, 30},
	351: {"SUMIF", 2, 3},
	352: {"COUNTIF", 2, 2},
	353: {"COUNTBLANK", 1, 1},
	354: {"SCENARIO_GET", 2, 2},
	355: {"ISPMT", 4, 4},
	356: {"DATEDIF", 3, 3},
	357: {"DATESTRING", 1, 1},
	358: {"NUMBERSTRING", 2, 2},
	359: {"ROMAN", 1, 2},
	360: {"GETPIVOTDATA", 2, 30},
	361: {"HYPERLINK", 1, 2},
	362: {"PHONETIC", 1, 1},
	363: {"AVERAGEA", 1, 30},
	364: {"MAXA", 1, 30},
	365: {"MINA", 1, 30},
	366: {"STDEVPA", 1, 30},
	367: {"VARPA", 1, 30},
	368: {"STDEVA", 1, 30},
	369: {"VARA", 1, 30},
	370: {"BAHTTEXT", 1, 1},
	384: {"THAIDAYOFWEEK", 1, 1},
	385: {"THAIDIGIT", 1, 1},
	386: {"THAIMONTHOFYEAR", 1, 1},
	387: {"THAINUMSOUND", 1, 1},
	388: {"THAINUMSTRING", 1, 1},
	389: {"THAISTRINGLENGTH", 1, 1},
	390: {"ISTHAIDIGIT", 1, 1},
	391: {"ROUNDBAHTDOWN", 1, 1},
	392: {"ROUNDBAHTUP", 1, 1},
	393: {"THAIYEAR", 1, 1},
	394: {"RTD", 2, 30},
}
